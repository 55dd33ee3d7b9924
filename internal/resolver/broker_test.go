package resolver

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/cost-onprem/installer/internal/kube/kubetest"
	"github.com/cost-onprem/installer/internal/outcome"
)

func kafka(namespace, name string, listeners ...map[string]any) runtime.Object {
	var fields map[string]any
	if len(listeners) > 0 {
		items := make([]any, 0, len(listeners))
		for _, l := range listeners {
			items = append(items, l)
		}
		fields = map[string]any{"status": map[string]any{"listeners": items}}
	}
	return kubetest.Object("kafka.strimzi.io/v1beta2", "Kafka", namespace, name, fields)
}

func listener(name, servers string) map[string]any {
	return map[string]any{"name": name, "bootstrapServers": servers}
}

func TestResolveBroker_EnvOverride(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil, kafka("kafka", "cluster", listener("plain", "cluster-kafka-bootstrap.kafka.svc:9092")))

	b, err := NewBrokerResolver(cluster.Client, nil).Resolve(context.Background(), BrokerInput{
		Bootstrap:        "broker-0.example.com:9093,broker-1.example.com:9093",
		SecurityProtocol: ProtocolSSL,
	})
	require.NoError(t, err)
	assert.Equal(t, "broker-0.example.com:9093,broker-1.example.com:9093", b.BootstrapAddress)
	assert.Equal(t, ProtocolSSL, b.SecurityProtocol)
	assert.Equal(t, BrokerSourceEnv, b.Source)
}

func TestResolveBroker_MalformedOverrideIsFatal(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil, kafka("kafka", "cluster"))

	for _, bad := range []string{"broker.example.com", "broker:notaport", ":9092", "a:9092,,b:9092"} {
		_, err := NewBrokerResolver(cluster.Client, nil).Resolve(context.Background(), BrokerInput{Bootstrap: bad})
		require.Error(t, err, bad)
		assert.Equal(t, outcome.SeverityFatal, outcome.SeverityOf(err), bad)
	}
}

func TestResolveBroker_Discovery(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil,
		kafka("kafka", "cluster",
			listener("tls", "cluster-kafka-bootstrap.kafka.svc:9093"),
			listener("plain", "cluster-kafka-bootstrap.kafka.svc:9092"),
		),
	)

	b, err := NewBrokerResolver(cluster.Client, nil).Resolve(context.Background(), BrokerInput{})
	require.NoError(t, err)
	assert.Equal(t, "cluster-kafka-bootstrap.kafka.svc:9092", b.BootstrapAddress)
	assert.Equal(t, ProtocolPlaintext, b.SecurityProtocol)
	assert.Equal(t, BrokerSourceDiscovery, b.Source)
	assert.Equal(t, "kafka", b.Namespace)
	assert.Empty(t, b.Warnings)
}

func TestResolveBroker_DiscoveryTLSOnly(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil, kafka("amq", "events", listener("tls", "events-kafka-bootstrap.amq.svc:9093")))

	b, err := NewBrokerResolver(cluster.Client, nil).Resolve(context.Background(), BrokerInput{})
	require.NoError(t, err)
	assert.Equal(t, "events-kafka-bootstrap.amq.svc:9093", b.BootstrapAddress)
	assert.Equal(t, ProtocolSSL, b.SecurityProtocol)
}

func TestResolveBroker_DiscoveryWithoutStatus(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil, kafka("kafka", "ros"))

	b, err := NewBrokerResolver(cluster.Client, nil).Resolve(context.Background(), BrokerInput{})
	require.NoError(t, err)
	assert.Equal(t, "ros-kafka-bootstrap.kafka.svc:9092", b.BootstrapAddress)
}

func TestResolveBroker_MultipleClustersPicksFirstSorted(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil,
		kafka("zeta", "cluster", listener("plain", "zeta:9092")),
		kafka("alpha", "cluster", listener("plain", "alpha:9092")),
	)

	b, err := NewBrokerResolver(cluster.Client, nil).Resolve(context.Background(), BrokerInput{})
	require.NoError(t, err)
	assert.Equal(t, "alpha:9092", b.BootstrapAddress)
	assert.Len(t, b.Warnings, 1)
}

func TestResolveBroker_NoneIsFatal(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil)

	_, err := NewBrokerResolver(cluster.Client, nil).Resolve(context.Background(), BrokerInput{})
	require.Error(t, err)
	f, ok := outcome.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, outcome.SeverityFatal, f.Severity)
	assert.Contains(t, f.Remediation, "KAFKA_BOOTSTRAP_SERVERS")
}

func TestResolveBroker_CacheRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cache := NewBrokerCache(dir)
	cluster := kubetest.NewCluster(nil, kafka("kafka", "cluster", listener("plain", "cluster-kafka-bootstrap.kafka.svc:9092")))
	r := NewBrokerResolver(cluster.Client, cache)
	in := BrokerInput{ClusterKey: "https://api.example.com:6443"}

	first, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, BrokerSourceDiscovery, first.Source)
	_, err = os.Stat(cache.Path())
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, BrokerSourceCache, second.Source)
	assert.Equal(t, first.BootstrapAddress, second.BootstrapAddress)
}

func TestResolveBroker_StaleCacheIsIgnored(t *testing.T) {
	t.Parallel()

	cache := NewBrokerCache(t.TempDir())
	require.NoError(t, cache.Store("https://api.example.com:6443", CacheEntry{
		Namespace: "old", Name: "gone", Bootstrap: "gone-kafka-bootstrap.old.svc:9092",
	}))
	cluster := kubetest.NewCluster(nil, kafka("kafka", "cluster", listener("plain", "cluster-kafka-bootstrap.kafka.svc:9092")))

	b, err := NewBrokerResolver(cluster.Client, cache).Resolve(context.Background(), BrokerInput{ClusterKey: "https://api.example.com:6443"})
	require.NoError(t, err)
	assert.Equal(t, BrokerSourceDiscovery, b.Source)
	assert.Equal(t, "cluster-kafka-bootstrap.kafka.svc:9092", b.BootstrapAddress)

	entry, ok := cache.Lookup("https://api.example.com:6443")
	require.True(t, ok)
	assert.Equal(t, "cluster", entry.Name)
}

func TestBrokerCache_CorruptFileIsEmpty(t *testing.T) {
	t.Parallel()

	cache := NewBrokerCache(t.TempDir())
	require.NoError(t, os.WriteFile(cache.Path(), []byte("{not yaml"), 0o600))

	_, ok := cache.Lookup("anything")
	assert.False(t, ok)
	assert.Nil(t, NewBrokerCache(""))
}
