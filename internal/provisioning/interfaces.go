package provisioning

import (
	"context"
	"time"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/release"

	"github.com/cost-onprem/installer/internal/buckets"
	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/health"
	"github.com/cost-onprem/installer/internal/helm"
	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/resolver"
	"github.com/cost-onprem/installer/internal/secrets"
)

// Phase defines one step of a run.
type Phase interface {
	// Name returns the stable phase name used in logs and metrics.
	Name() string

	// Provision executes the phase.
	Provision(ctx *Context) error
}

// Cluster is the subset of *kube.Client the phases use directly.
type Cluster interface {
	Ping(ctx context.Context) (string, error)
	EnsureNamespace(ctx context.Context, name string) (bool, error)
	ListWorkloads(ctx context.Context, namespace, selector string) ([]kube.WorkloadStatus, error)
	ServerURL() string
}

// FactProbe is implemented by *probe.Probe.
type FactProbe interface {
	DetectPlatform(ctx context.Context) (probe.Platform, error)
	Gather(ctx context.Context, platform probe.Platform, namespace string) (*probe.Facts, error)
}

// IdentityResolver is implemented by *resolver.IdentityResolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, in resolver.IdentityInput) (*resolver.Identity, error)
}

// StorageResolver is implemented by *resolver.StorageResolver.
type StorageResolver interface {
	Resolve(ctx context.Context, in resolver.StorageInput) (*resolver.Storage, error)
}

// BrokerResolver is implemented by *resolver.BrokerResolver.
type BrokerResolver interface {
	Resolve(ctx context.Context, in resolver.BrokerInput) (*resolver.Broker, error)
}

// SecretProvisioner is implemented by *secrets.Provisioner.
type SecretProvisioner interface {
	Names() secrets.Names
	EnsureDatabaseCredentials(ctx context.Context) (secrets.Result, error)
	EnsureSigningKey(ctx context.Context) (secrets.Result, error)
	EnsureSessionSecret(ctx context.Context) (secrets.Result, error)
	EnsureStorageCredentials(ctx context.Context, in secrets.StorageCredentialsInput) (secrets.Result, error)
	EnsureOAuthClientSecret(ctx context.Context, identity *resolver.Identity) (secrets.Result, error)
	EnsureTrustAnchor(ctx context.Context, identityURL string) (secrets.Result, error)
	TrustBundle(ctx context.Context) ([]byte, error)
}

// BucketProvisioner is implemented by *buckets.Provisioner.
type BucketProvisioner interface {
	Ensure(ctx context.Context, in buckets.Input) (buckets.Result, error)
}

// Deployer is implemented by *helm.Client.
type Deployer interface {
	LoadChart(src config.ChartSource) (*chart.Chart, error)
	InstallOrUpgrade(ctx context.Context, ch *chart.Chart, inv *helm.Invocation, timeout time.Duration) (*release.Release, error)
}

// HealthVerifier is implemented by *health.Verifier.
type HealthVerifier interface {
	Verify(ctx context.Context) *health.Report
}
