package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/kube/kubetest"
	"github.com/cost-onprem/installer/internal/outcome"
)

const testNamespace = "cost-onprem"

func boundClaim(phase string) runtime.Object {
	return kubetest.Object("objectbucket.io/v1alpha1", "ObjectBucketClaim", testNamespace, ClaimName, map[string]any{
		"status": map[string]any{"phase": phase},
	})
}

func claimObjects(port string) []runtime.Object {
	return []runtime.Object{
		&corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: ClaimName, Namespace: testNamespace},
			Data: map[string]string{
				"BUCKET_HOST":   "ceph.local",
				"BUCKET_PORT":   port,
				"BUCKET_REGION": "us-east-1",
				"BUCKET_NAME":   "ros-data-ceph-0a1b2c",
			},
		},
		&corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: ClaimName, Namespace: testNamespace},
			Data: map[string][]byte{
				"AWS_ACCESS_KEY_ID":     []byte("claim-key"),
				"AWS_SECRET_ACCESS_KEY": []byte("claim-secret"),
			},
		},
	}
}

func operatorSecret() runtime.Object {
	return &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: "noobaa-admin", Namespace: "openshift-storage"}}
}

func TestResolveStorage_UserDeclaredWinsOverClaim(t *testing.T) {
	t.Parallel()

	typed := append(claimObjects("443"), operatorSecret())
	cluster := kubetest.NewCluster(typed, boundClaim("Bound"))

	values, err := config.ParseValuesDocument([]byte("storage:\n  endpoint: obj.example.com\n"))
	require.NoError(t, err)

	s, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{
		Namespace: testNamespace,
		Values:    values,
		Env:       config.StorageOverrides{ProxyEndpoint: "proxy.local:9000"},
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyUserDeclared, s.Strategy)
	assert.Equal(t, "obj.example.com", s.Endpoint)
	assert.Equal(t, 443, s.Port)
	assert.True(t, s.UseTLS)
	assert.Equal(t, CredentialsGenerated, s.CredentialSource)
	assert.Empty(t, s.Warnings)
}

func TestResolveStorage_UserDeclaredEnvOverridesDocument(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil)
	values, err := config.ParseValuesDocument([]byte("storage:\n  endpoint: doc.example.com\n  port: 9000\n"))
	require.NoError(t, err)

	s, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{
		Namespace: testNamespace,
		Values:    values,
		Env:       config.StorageOverrides{Endpoint: "http://minio.minio.svc", UseSSL: "false", Region: "eu-west-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "minio.minio.svc", s.Endpoint)
	assert.Equal(t, 9000, s.Port)
	assert.False(t, s.UseTLS)
	assert.Equal(t, "eu-west-1", s.Region)
	assert.Equal(t, "http://minio.minio.svc:9000", s.URL())
}

func TestResolveStorage_UserDeclaredExistingSecret(t *testing.T) {
	t.Parallel()

	values, err := config.ParseValuesDocument([]byte("storage:\n  endpoint: obj.example.com\n  existingSecret: my-s3\n"))
	require.NoError(t, err)

	cluster := kubetest.NewCluster([]runtime.Object{
		&corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: "my-s3", Namespace: testNamespace}},
	})
	s, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace, Values: values})
	require.NoError(t, err)
	assert.Equal(t, CredentialsUserManaged, s.CredentialSource)
	assert.Equal(t, "my-s3", s.ExistingSecretName)
	assert.False(t, s.ManagesCredentials())

	// The named secret must exist.
	empty := kubetest.NewCluster(nil)
	_, err = NewStorageResolver(empty.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace, Values: values})
	require.Error(t, err)
	f, ok := outcome.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, outcome.SeverityFatal, f.Severity)
	assert.Contains(t, f.Missing, "my-s3")
}

func TestResolveStorage_UserDeclaredMalformedIsFatal(t *testing.T) {
	t.Parallel()

	// Claim is bound, but a malformed declaration must not fall through to it.
	cluster := kubetest.NewCluster(claimObjects("443"), boundClaim("Bound"))

	tests := map[string]config.StorageOverrides{
		"bad port": {Endpoint: "obj.example.com", Port: "https"},
		"bad tls":  {Endpoint: "obj.example.com", UseSSL: "maybe"},
		"bad url":  {Endpoint: "ftp://obj.example.com"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace, Env: env})
			require.Error(t, err)
			f, ok := outcome.AsFailure(err)
			require.True(t, ok)
			assert.Equal(t, string(StrategyUserDeclared), f.Strategy)
			assert.Equal(t, outcome.SeverityFatal, f.Severity)
		})
	}
}

func TestResolveStorage_ClaimPrecedence(t *testing.T) {
	t.Parallel()

	typed := append(claimObjects("443"), operatorSecret())
	cluster := kubetest.NewCluster(typed, boundClaim("Bound"))

	s, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{
		Namespace: testNamespace,
		Env:       config.StorageOverrides{ProxyEndpoint: "proxy.local"},
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyExternalClaim, s.Strategy)
	assert.Equal(t, "ceph.local", s.Endpoint)
	assert.Equal(t, 443, s.Port)
	assert.True(t, s.UseTLS)
	assert.Equal(t, CredentialsExternalClaim, s.CredentialSource)
	assert.Equal(t, ClaimName, s.ExistingSecretName)
	assert.False(t, s.ProvisionsBuckets())
	assert.Equal(t, []string{"ros-data-ceph-0a1b2c"}, s.BucketNames())
	for _, logical := range LogicalBuckets {
		assert.Equal(t, "ros-data-ceph-0a1b2c", s.Buckets[logical])
	}
}

func TestResolveStorage_ClaimPlainPort(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(claimObjects("80"), boundClaim("Bound"))

	s, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace})
	require.NoError(t, err)
	assert.Equal(t, 80, s.Port)
	assert.False(t, s.UseTLS)
}

func TestResolveStorage_ClaimNotReadyIsFatal(t *testing.T) {
	t.Parallel()

	unbound := kubetest.NewCluster(claimObjects("443"), boundClaim("Pending"))
	_, err := NewStorageResolver(unbound.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace})
	require.Error(t, err)
	assert.Equal(t, outcome.SeverityFatal, outcome.SeverityOf(err))
	assert.Contains(t, err.Error(), "Pending")

	noConfigMap := kubetest.NewCluster([]runtime.Object{operatorSecret()}, boundClaim("Bound"))
	_, err = NewStorageResolver(noConfigMap.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace})
	require.Error(t, err)
	f, ok := outcome.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, string(StrategyExternalClaim), f.Strategy)
	assert.Contains(t, f.Missing, "configmap")
}

func TestResolveStorage_DevProxy(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster([]runtime.Object{operatorSecret()})

	s, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{
		Namespace: testNamespace,
		Env:       config.StorageOverrides{ProxyEndpoint: "http://s3-proxy.dev.svc:9000"},
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyDevProxy, s.Strategy)
	assert.Equal(t, "s3-proxy.dev.svc", s.Endpoint)
	assert.Equal(t, 80, s.Port)
	assert.False(t, s.UseTLS)
	assert.Len(t, s.Warnings, 1)
}

func TestResolveStorage_Operator(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster([]runtime.Object{operatorSecret()})

	s, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace})
	require.NoError(t, err)

	assert.Equal(t, StrategyOperator, s.Strategy)
	assert.Equal(t, OperatorEndpoint, s.Endpoint)
	assert.Equal(t, 443, s.Port)
	assert.True(t, s.UseTLS)
	assert.Equal(t, CredentialsGenerated, s.CredentialSource)
	assert.True(t, s.ManagesCredentials())
	assert.True(t, s.ProvisionsBuckets())
	assert.Equal(t, LogicalBuckets, s.BucketNames())
}

func TestResolveStorage_FullFallback(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil)

	s, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace})
	require.NoError(t, err)

	assert.Equal(t, StrategyFallback, s.Strategy)
	assert.Equal(t, PlaceholderEndpoint, s.Endpoint)
	assert.Len(t, s.Warnings, 1)
	assert.False(t, s.ProvisionsBuckets())
	assert.False(t, s.ManagesCredentials())
}

func TestResolveStorage_RequireStorage(t *testing.T) {
	t.Parallel()

	cluster := kubetest.NewCluster(nil)

	_, err := NewStorageResolver(cluster.Client).Resolve(context.Background(), StorageInput{Namespace: testNamespace, RequireStorage: true})
	require.Error(t, err)
	f, ok := outcome.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, string(StrategyFallback), f.Strategy)
	assert.NotEmpty(t, f.Remediation)
}

func TestResolveStorage_Deterministic(t *testing.T) {
	t.Parallel()

	typed := append(claimObjects("443"), operatorSecret())
	cluster := kubetest.NewCluster(typed, boundClaim("Bound"))
	r := NewStorageResolver(cluster.Client)
	in := StorageInput{Namespace: testNamespace, Env: config.StorageOverrides{ProxyEndpoint: "proxy.local"}}

	first, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSplitEndpoint(t *testing.T) {
	t.Parallel()

	host, scheme, port, err := splitEndpoint("https://s3.example.com:8443")
	require.NoError(t, err)
	assert.Equal(t, "s3.example.com", host)
	assert.Equal(t, "https", scheme)
	assert.Equal(t, 8443, port)

	host, scheme, port, err = splitEndpoint("s3.example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3.example.com", host)
	assert.Empty(t, scheme)
	assert.Zero(t, port)

	_, _, _, err = splitEndpoint("s3.example.com:0")
	require.Error(t, err)
}
