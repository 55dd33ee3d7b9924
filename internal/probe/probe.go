// Package probe discovers ambient cluster facts with read-only queries.
//
// Every fact is optional: a fact that cannot be determined is left empty so
// the chart default applies, and the orchestrator reports it once during
// preflight. Environment overrides always win over discovery.
package probe

import (
	"context"
	"strconv"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/cost-onprem/installer/internal/kube"
)

// Platform is the detected cluster flavour.
type Platform string

const (
	// PlatformOpenShift is a cluster serving the OpenShift route API.
	PlatformOpenShift Platform = "openshift"
	// PlatformKubernetes is any other conformant cluster.
	PlatformKubernetes Platform = "kubernetes"
)

// Well-known locations of operator-managed objects.
const (
	StorageOperatorNamespace   = "openshift-storage"
	StorageOperatorAdminSecret = "noobaa-admin"

	defaultStorageClassAnnotation = "storageclass.kubernetes.io/is-default-class"
	supplementalGroupsAnnotation  = "openshift.io/sa.scc.supplemental-groups"
)

// Facts is everything the probe learned about the cluster.
type Facts struct {
	ServerVersion    string
	ClusterDomain    string
	StorageClassName string
	FSGroup          string

	StorageOperatorPresent  bool
	IdentityProviderPresent bool
	BrokerPresent           bool
}

// Overrides are caller-supplied values that replace discovery.
type Overrides struct {
	ClusterDomain string
	StorageClass  string
}

// Probe runs read-only fact queries against the cluster.
type Probe struct {
	client    *kube.Client
	overrides Overrides
}

// New creates a Probe.
func New(client *kube.Client, overrides Overrides) *Probe {
	return &Probe{client: client, overrides: overrides}
}

// DetectPlatform identifies OpenShift by the presence of the route API group.
func (p *Probe) DetectPlatform(ctx context.Context) (Platform, error) {
	ok, err := p.client.HasAPIGroup(ctx, kube.OpenShiftRouteGroup)
	if err != nil {
		return "", err
	}
	if ok {
		return PlatformOpenShift, nil
	}
	return PlatformKubernetes, nil
}

// Gather collects every optional fact. Individual lookups that fail leave the
// corresponding field empty; only an unreachable control plane is an error.
func (p *Probe) Gather(ctx context.Context, platform Platform, namespace string) (*Facts, error) {
	version, err := p.client.Ping(ctx)
	if err != nil {
		return nil, err
	}

	facts := &Facts{ServerVersion: version}
	facts.StorageClassName = p.storageClass(ctx)
	facts.ClusterDomain = p.clusterDomain(ctx, platform)
	facts.FSGroup = p.fsGroup(ctx, namespace)
	facts.StorageOperatorPresent = p.storageOperatorPresent(ctx)
	facts.IdentityProviderPresent = p.anyResource(ctx, kube.KeycloakGVR)
	facts.BrokerPresent = p.anyResource(ctx, kube.KafkaGVR)
	return facts, nil
}

func (p *Probe) storageClass(ctx context.Context) string {
	if p.overrides.StorageClass != "" {
		return p.overrides.StorageClass
	}
	classes, err := p.client.Clientset().StorageV1().StorageClasses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return ""
	}
	for _, sc := range classes.Items {
		if sc.Annotations[defaultStorageClassAnnotation] == "true" {
			return sc.Name
		}
	}
	return ""
}

func (p *Probe) clusterDomain(ctx context.Context, platform Platform) string {
	if p.overrides.ClusterDomain != "" {
		return p.overrides.ClusterDomain
	}
	if platform != PlatformOpenShift {
		return ""
	}
	obj, found, err := p.client.GetResource(ctx, kube.IngressConfigGVR, "", "cluster")
	if err != nil || !found {
		return ""
	}
	domain, _, _ := unstructured.NestedString(obj.Object, "spec", "domain")
	return domain
}

// fsGroup derives a filesystem group from the namespace's supplemental group
// range annotation ("1000680000/10000" yields "1000680000").
func (p *Probe) fsGroup(ctx context.Context, namespace string) string {
	ns, found, err := p.client.GetNamespace(ctx, namespace)
	if err != nil || !found {
		return ""
	}
	return ParseGroupRange(ns.Annotations[supplementalGroupsAnnotation])
}

func (p *Probe) storageOperatorPresent(ctx context.Context) bool {
	_, found, err := p.client.GetSecret(ctx, StorageOperatorNamespace, StorageOperatorAdminSecret)
	return err == nil && found
}

func (p *Probe) anyResource(ctx context.Context, gvr schema.GroupVersionResource) bool {
	items, err := p.client.ListResources(ctx, gvr, "")
	return err == nil && len(items) > 0
}

// ParseGroupRange returns the first id of an OpenShift id range annotation.
// Both "start/size" and "start-end" forms are accepted.
func ParseGroupRange(annotation string) string {
	if annotation == "" {
		return ""
	}
	first := strings.Split(annotation, ",")[0]
	for _, sep := range []string{"/", "-"} {
		if i := strings.Index(first, sep); i > 0 {
			first = first[:i]
			break
		}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
