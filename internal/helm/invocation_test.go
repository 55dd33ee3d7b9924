package helm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cost-onprem/installer/internal/config"
)

func TestInvocation_ValuesMergeOverridesInOrder(t *testing.T) {
	t.Parallel()

	base := config.ValuesDocument{
		"storage": map[string]any{"endpoint": "from-file", "region": "eu-west-1"},
		"ui":      map[string]any{"replicas": 2},
	}
	inv := NewInvocation(config.ChartSource{Name: "cost-onprem"}, "cost-onprem", "cost-onprem", base)
	inv.Set("storage.endpoint", "s3.openshift-storage.svc")
	inv.Set("storage.port", 443)
	inv.Set("storage.useTLS", true)
	inv.Set("storage.endpoint", "ceph.local")

	values, err := inv.Values()
	require.NoError(t, err)

	storage := values["storage"].(map[string]any)
	assert.Equal(t, "ceph.local", storage["endpoint"])
	assert.Equal(t, "eu-west-1", storage["region"])
	assert.EqualValues(t, 443, storage["port"])
	assert.Equal(t, true, storage["useTLS"])
	assert.Equal(t, map[string]any{"replicas": 2}, values["ui"])

	// The base document is never mutated.
	assert.Equal(t, "from-file", base["storage"].(map[string]any)["endpoint"])
}

func TestInvocation_ValuesKeepSeparators(t *testing.T) {
	t.Parallel()

	inv := NewInvocation(config.ChartSource{}, "r", "ns", nil)
	inv.Set("kafka.bootstrapServers", "a.kafka.svc:9092,b.kafka.svc:9092")
	inv.Set("keycloak.url", `https://kc.example.com/auth?x=1`)

	values, err := inv.Values()
	require.NoError(t, err)

	kafka := values["kafka"].(map[string]any)
	assert.Equal(t, "a.kafka.svc:9092,b.kafka.svc:9092", kafka["bootstrapServers"])
	assert.Equal(t, "https://kc.example.com/auth?x=1", values["keycloak"].(map[string]any)["url"])
}

func TestInvocation_AddRaw(t *testing.T) {
	t.Parallel()

	inv := NewInvocation(config.ChartSource{}, "r", "ns", nil)
	inv.Set("global.storageClass", "gp3")
	require.NoError(t, inv.AddRaw("global.storageClass=ocs-storagecluster-ceph-rbd"))
	require.Error(t, inv.AddRaw("novalue"))
	require.Error(t, inv.AddRaw("=value"))

	got, ok := inv.Lookup("global.storageClass")
	require.True(t, ok)
	assert.Equal(t, "ocs-storagecluster-ceph-rbd", got)
	assert.Equal(t, []string{"global.storageClass", "global.storageClass"}, inv.Keys())

	_, ok = inv.Lookup("missing")
	assert.False(t, ok)
}

func TestInvocation_SetString(t *testing.T) {
	t.Parallel()

	inv := NewInvocation(config.ChartSource{}, "r", "ns", nil)
	inv.SetString("global.clusterDomain", "")
	inv.SetString("global.clusterDomain", "apps.example.com")

	assert.Equal(t, []string{"global.clusterDomain"}, inv.Keys())
}

func TestOverride_String(t *testing.T) {
	t.Parallel()

	inv := NewInvocation(config.ChartSource{}, "r", "ns", nil)
	inv.Set("storage.port", 80)

	assert.Equal(t, "storage.port=80", inv.Overrides[0].String())
}

func TestInvocation_RawOverridesParseLikeHelm(t *testing.T) {
	t.Parallel()

	inv := NewInvocation(config.ChartSource{}, "r", "ns", nil)
	require.NoError(t, inv.AddRaw("a=1,b=2"))
	require.NoError(t, inv.AddRaw("list={x,y}"))
	inv.Set("kafka.bootstrapServers", "k1:9092,k2:9092")

	values, err := inv.Values()
	require.NoError(t, err)

	assert.EqualValues(t, 1, values["a"])
	assert.EqualValues(t, 2, values["b"])
	assert.Equal(t, []any{"x", "y"}, values["list"])
	assert.Equal(t, "k1:9092,k2:9092", values["kafka"].(map[string]any)["bootstrapServers"])
}
