package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/cost-onprem/installer/internal/kube/kubetest"
)

func TestDetectPlatform(t *testing.T) {
	t.Parallel()

	plain := kubetest.NewCluster(nil)
	got, err := New(plain.Client, Overrides{}).DetectPlatform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PlatformKubernetes, got)

	ocp := kubetest.NewCluster(nil).WithAPIGroups("route.openshift.io")
	got, err = New(ocp.Client, Overrides{}).DetectPlatform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PlatformOpenShift, got)
}

func TestGather_OpenShift(t *testing.T) {
	t.Parallel()

	typed := []runtime.Object{
		&storagev1.StorageClass{ObjectMeta: metav1.ObjectMeta{Name: "slow"}},
		&storagev1.StorageClass{ObjectMeta: metav1.ObjectMeta{
			Name:        "ocs-storagecluster-ceph-rbd",
			Annotations: map[string]string{"storageclass.kubernetes.io/is-default-class": "true"},
		}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{
			Name:        "cost-onprem",
			Annotations: map[string]string{"openshift.io/sa.scc.supplemental-groups": "1000680000/10000"},
		}},
		&corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: "noobaa-admin", Namespace: "openshift-storage"}},
	}
	custom := []runtime.Object{
		kubetest.Object("config.openshift.io/v1", "Ingress", "", "cluster", map[string]any{
			"spec": map[string]any{"domain": "apps.example.com"},
		}),
		kubetest.Object("k8s.keycloak.org/v2alpha1", "Keycloak", "keycloak", "keycloak", nil),
	}
	cluster := kubetest.NewCluster(typed, custom...)

	facts, err := New(cluster.Client, Overrides{}).Gather(context.Background(), PlatformOpenShift, "cost-onprem")
	require.NoError(t, err)

	assert.Equal(t, "apps.example.com", facts.ClusterDomain)
	assert.Equal(t, "ocs-storagecluster-ceph-rbd", facts.StorageClassName)
	assert.Equal(t, "1000680000", facts.FSGroup)
	assert.True(t, facts.StorageOperatorPresent)
	assert.True(t, facts.IdentityProviderPresent)
	assert.False(t, facts.BrokerPresent)
}

func TestGather_OverridesWin(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil, kubetest.Object("config.openshift.io/v1", "Ingress", "", "cluster", map[string]any{
		"spec": map[string]any{"domain": "apps.example.com"},
	}))

	facts, err := New(cluster.Client, Overrides{ClusterDomain: "apps.override.io", StorageClass: "gp3"}).
		Gather(context.Background(), PlatformOpenShift, "cost-onprem")
	require.NoError(t, err)

	assert.Equal(t, "apps.override.io", facts.ClusterDomain)
	assert.Equal(t, "gp3", facts.StorageClassName)
}

func TestGather_NothingDetectable(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil)

	facts, err := New(cluster.Client, Overrides{}).Gather(context.Background(), PlatformKubernetes, "cost-onprem")
	require.NoError(t, err)

	assert.Empty(t, facts.ClusterDomain)
	assert.Empty(t, facts.StorageClassName)
	assert.Empty(t, facts.FSGroup)
	assert.False(t, facts.StorageOperatorPresent)
}

func TestParseGroupRange(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"1000680000/10000":         "1000680000",
		"1000680000-1000689999":    "1000680000",
		"1000680000/10000,2000/10": "1000680000",
		"":                         "",
		"garbage":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseGroupRange(in), in)
	}
}
