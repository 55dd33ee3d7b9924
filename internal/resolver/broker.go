package resolver

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/outcome"
)

// Broker sources.
const (
	BrokerSourceEnv       = "environment"
	BrokerSourceCache     = "cache"
	BrokerSourceDiscovery = "discovery"
)

// Kafka security protocols.
const (
	ProtocolPlaintext = "PLAINTEXT"
	ProtocolSSL       = "SSL"
)

const (
	plainListener = "plain"
	tlsListener   = "tls"
	bootstrapPort = 9092
)

// Broker is the resolved message broker endpoint.
type Broker struct {
	BootstrapAddress string
	SecurityProtocol string
	Source           string

	// Namespace and Name identify the Kafka resource when discovered.
	Namespace string
	Name      string

	Warnings []string
}

// BrokerInput is everything the broker resolver looks at.
type BrokerInput struct {
	// Bootstrap is an explicit comma-separated host:port list.
	Bootstrap        string
	SecurityProtocol string

	// ClusterKey identifies the cluster in the cache, usually the API server URL.
	ClusterKey string
}

// BrokerResolver finds the Kafka bootstrap address.
type BrokerResolver struct {
	client *kube.Client
	cache  *BrokerCache
}

// NewBrokerResolver creates a BrokerResolver. cache may be nil.
func NewBrokerResolver(client *kube.Client, cache *BrokerCache) *BrokerResolver {
	return &BrokerResolver{client: client, cache: cache}
}

// Resolve returns the broker endpoint. An explicit override wins, then a
// cached discovery result that still matches a live Kafka resource, then an
// all-namespace scan. No broker is fatal.
func (r *BrokerResolver) Resolve(ctx context.Context, in BrokerInput) (*Broker, error) {
	if in.Bootstrap != "" {
		if err := validateBootstrap(in.Bootstrap); err != nil {
			return nil, outcome.Fatal(err,
				outcome.WithStrategy(BrokerSourceEnv),
				outcome.WithMissing("KAFKA_BOOTSTRAP_SERVERS"),
				outcome.WithRemediation("export KAFKA_BOOTSTRAP_SERVERS=<host>:<port>[,<host>:<port>]"))
		}
		return &Broker{
			BootstrapAddress: in.Bootstrap,
			SecurityProtocol: firstNonEmpty(in.SecurityProtocol, ProtocolPlaintext),
			Source:           BrokerSourceEnv,
		}, nil
	}

	if b := r.fromCache(ctx, in.ClusterKey); b != nil {
		if in.SecurityProtocol != "" {
			b.SecurityProtocol = in.SecurityProtocol
		}
		return b, nil
	}

	b, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}
	if in.SecurityProtocol != "" {
		b.SecurityProtocol = in.SecurityProtocol
	}

	if r.cache != nil && in.ClusterKey != "" {
		if err := r.cache.Store(in.ClusterKey, CacheEntry{Namespace: b.Namespace, Name: b.Name, Bootstrap: b.BootstrapAddress}); err != nil {
			b.Warnings = append(b.Warnings, fmt.Sprintf("broker cache not written: %v", err))
		}
	}
	return b, nil
}

func (r *BrokerResolver) fromCache(ctx context.Context, clusterKey string) *Broker {
	if r.cache == nil || clusterKey == "" {
		return nil
	}
	entry, ok := r.cache.Lookup(clusterKey)
	if !ok {
		return nil
	}

	obj, found, err := r.client.GetResource(ctx, kube.KafkaGVR, entry.Namespace, entry.Name)
	if err != nil || !found {
		return nil
	}
	address, protocol := bootstrapFor(obj)
	if address != entry.Bootstrap {
		return nil
	}
	return &Broker{
		BootstrapAddress: address,
		SecurityProtocol: protocol,
		Source:           BrokerSourceCache,
		Namespace:        entry.Namespace,
		Name:             entry.Name,
	}
}

func (r *BrokerResolver) discover(ctx context.Context) (*Broker, error) {
	items, err := r.client.ListResources(ctx, kube.KafkaGVR, "")
	if err != nil {
		return nil, outcome.Fatal(err, outcome.WithStrategy(BrokerSourceDiscovery))
	}
	if len(items) == 0 {
		return nil, outcome.Fatal(fmt.Errorf("no Kafka cluster found"),
			outcome.WithStrategy(BrokerSourceDiscovery),
			outcome.WithMissing("Kafka resource (kafka.strimzi.io) in any namespace"),
			outcome.WithRemediation("install AMQ Streams / Strimzi and create a Kafka cluster, or export KAFKA_BOOTSTRAP_SERVERS=<host>:<port>"))
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].GetNamespace() != items[j].GetNamespace() {
			return items[i].GetNamespace() < items[j].GetNamespace()
		}
		return items[i].GetName() < items[j].GetName()
	})

	chosen := &items[0]
	address, protocol := bootstrapFor(chosen)
	b := &Broker{
		BootstrapAddress: address,
		SecurityProtocol: protocol,
		Source:           BrokerSourceDiscovery,
		Namespace:        chosen.GetNamespace(),
		Name:             chosen.GetName(),
	}
	if len(items) > 1 {
		b.Warnings = append(b.Warnings, fmt.Sprintf("%d Kafka clusters found; using %s/%s (set KAFKA_BOOTSTRAP_SERVERS to choose another)",
			len(items), b.Namespace, b.Name))
	}
	return b, nil
}

// bootstrapFor reads the bootstrap address from the Kafka status listeners,
// preferring the plain listener. Without status, the conventional bootstrap
// service name is used.
func bootstrapFor(obj *unstructured.Unstructured) (address, protocol string) {
	listeners, _, _ := unstructured.NestedSlice(obj.Object, "status", "listeners")

	byName := make(map[string]string)
	var first string
	for _, l := range listeners {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}
		name, _, _ := unstructured.NestedString(m, "name")
		servers, _, _ := unstructured.NestedString(m, "bootstrapServers")
		if servers == "" {
			continue
		}
		if first == "" {
			first = servers
		}
		byName[name] = servers
	}

	switch {
	case byName[plainListener] != "":
		return byName[plainListener], ProtocolPlaintext
	case byName[tlsListener] != "":
		return byName[tlsListener], ProtocolSSL
	case first != "":
		return first, ProtocolPlaintext
	}

	host := fmt.Sprintf("%s-kafka-bootstrap.%s.svc", obj.GetName(), obj.GetNamespace())
	return net.JoinHostPort(host, strconv.Itoa(bootstrapPort)), ProtocolPlaintext
}

func validateBootstrap(list string) error {
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		host, port, err := net.SplitHostPort(entry)
		if err != nil {
			return fmt.Errorf("invalid bootstrap server %q: %w", entry, err)
		}
		if host == "" {
			return fmt.Errorf("invalid bootstrap server %q: empty host", entry)
		}
		if _, err := parsePort(port); err != nil {
			return fmt.Errorf("invalid bootstrap server %q: %w", entry, err)
		}
	}
	return nil
}
