package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/probe"
)

// DefaultIdentityNamespace is where the identity provider usually lives.
const DefaultIdentityNamespace = "keycloak"

// identityRouteName is the route the Keycloak operator publishes.
const identityRouteName = "keycloak"

// Identity is the resolved identity provider location.
type Identity struct {
	Found     bool
	Namespace string
	Name      string
	URL       string
}

// IdentityInput carries the caller overrides.
type IdentityInput struct {
	Platform  probe.Platform
	Namespace string
	URL       string
}

// IdentityResolver locates the Keycloak instance used for UI sign-in.
type IdentityResolver struct {
	client *kube.Client
}

// NewIdentityResolver creates an IdentityResolver.
func NewIdentityResolver(client *kube.Client) *IdentityResolver {
	return &IdentityResolver{client: client}
}

// Resolve locates the identity provider. When nothing is found it returns a
// not-found Identity together with a soft failure, so the run continues with
// UI authentication degraded.
func (r *IdentityResolver) Resolve(ctx context.Context, in IdentityInput) (*Identity, error) {
	if in.URL != "" {
		return &Identity{
			Found:     true,
			Namespace: firstNonEmpty(in.Namespace, DefaultIdentityNamespace),
			URL:       strings.TrimSuffix(in.URL, "/"),
		}, nil
	}

	items, err := r.client.ListResources(ctx, kube.KeycloakGVR, in.Namespace)
	if err != nil {
		return &Identity{}, outcome.Soft(err, outcome.WithStrategy("discovery"))
	}
	if len(items) == 0 {
		where := "any namespace"
		if in.Namespace != "" {
			where = "namespace " + in.Namespace
		}
		return &Identity{}, outcome.Soft(fmt.Errorf("no identity provider found"),
			outcome.WithStrategy("discovery"),
			outcome.WithMissing("Keycloak resource (k8s.keycloak.org) in "+where),
			outcome.WithRemediation("install the Red Hat build of Keycloak operator, or export KEYCLOAK_URL and KEYCLOAK_NAMESPACE"))
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].GetNamespace() != items[j].GetNamespace() {
			return items[i].GetNamespace() < items[j].GetNamespace()
		}
		return items[i].GetName() < items[j].GetName()
	})
	kc := &items[0]

	id := &Identity{Found: true, Namespace: kc.GetNamespace(), Name: kc.GetName()}
	if in.Platform == probe.PlatformOpenShift {
		id.URL = r.routeURL(ctx, id.Namespace)
	}
	if id.URL == "" {
		if host, _, _ := unstructured.NestedString(kc.Object, "spec", "hostname", "hostname"); host != "" {
			id.URL = hostURL(host)
		}
	}
	return id, nil
}

func (r *IdentityResolver) routeURL(ctx context.Context, namespace string) string {
	route, found, err := r.client.GetResource(ctx, kube.RouteGVR, namespace, identityRouteName)
	if err != nil || !found {
		return ""
	}
	host, _, _ := unstructured.NestedString(route.Object, "spec", "host")
	if host == "" {
		return ""
	}
	if _, hasTLS, _ := unstructured.NestedMap(route.Object, "spec", "tls"); hasTLS {
		return "https://" + host
	}
	return "http://" + host
}

// hostURL turns a bare hostname into an https URL, keeping an explicit scheme.
func hostURL(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/")
	}
	return "https://" + host
}
