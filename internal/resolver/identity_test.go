package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cost-onprem/installer/internal/kube/kubetest"
	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/probe"
)

func TestResolveIdentity_Override(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil)

	id, err := NewIdentityResolver(cluster.Client).Resolve(context.Background(), IdentityInput{
		URL: "https://sso.example.com/",
	})
	require.NoError(t, err)
	assert.True(t, id.Found)
	assert.Equal(t, DefaultIdentityNamespace, id.Namespace)
	assert.Equal(t, "https://sso.example.com", id.URL)
}

func TestResolveIdentity_RouteOnOpenShift(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil,
		kubetest.Object("k8s.keycloak.org/v2alpha1", "Keycloak", "keycloak", "keycloak", nil),
		kubetest.Object("route.openshift.io/v1", "Route", "keycloak", "keycloak", map[string]any{
			"spec": map[string]any{
				"host": "keycloak-keycloak.apps.example.com",
				"tls":  map[string]any{"termination": "reencrypt"},
			},
		}),
	)

	id, err := NewIdentityResolver(cluster.Client).Resolve(context.Background(), IdentityInput{Platform: probe.PlatformOpenShift})
	require.NoError(t, err)
	assert.True(t, id.Found)
	assert.Equal(t, "keycloak", id.Namespace)
	assert.Equal(t, "https://keycloak-keycloak.apps.example.com", id.URL)
}

func TestResolveIdentity_HostnameFromResource(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil,
		kubetest.Object("k8s.keycloak.org/v2alpha1", "Keycloak", "sso", "rhbk", map[string]any{
			"spec": map[string]any{"hostname": map[string]any{"hostname": "sso.example.com"}},
		}),
	)

	id, err := NewIdentityResolver(cluster.Client).Resolve(context.Background(), IdentityInput{Platform: probe.PlatformKubernetes})
	require.NoError(t, err)
	assert.Equal(t, "sso", id.Namespace)
	assert.Equal(t, "rhbk", id.Name)
	assert.Equal(t, "https://sso.example.com", id.URL)
}

func TestResolveIdentity_AbsentIsSoft(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil)

	id, err := NewIdentityResolver(cluster.Client).Resolve(context.Background(), IdentityInput{Platform: probe.PlatformOpenShift})
	require.Error(t, err)
	assert.True(t, outcome.IsSoft(err))
	require.NotNil(t, id)
	assert.False(t, id.Found)
}

func TestResolveIdentity_NamespaceScoped(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil, kubetest.Object("k8s.keycloak.org/v2alpha1", "Keycloak", "other", "keycloak", nil))

	id, err := NewIdentityResolver(cluster.Client).Resolve(context.Background(), IdentityInput{Namespace: "keycloak"})
	require.Error(t, err)
	assert.True(t, outcome.IsSoft(err))
	assert.False(t, id.Found)
}
