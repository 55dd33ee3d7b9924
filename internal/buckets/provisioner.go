// Package buckets creates the application's object storage buckets.
//
// All buckets are created by one disposable execution unit: either an
// in-cluster Job, for endpoints only resolvable inside the cluster, or a
// direct S3 client. Whatever happens, bucket provisioning never aborts the
// install; a failure is reported once as a soft failure.
package buckets

import (
	"context"
	"fmt"
	"strings"

	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/resolver"
	"github.com/cost-onprem/installer/internal/secrets"
)

// BucketStatus is the outcome for one bucket.
type BucketStatus string

const (
	BucketCreated BucketStatus = "created"
	BucketExists  BucketStatus = "exists"
	// BucketEnsured means the bucket exists now but the executor cannot tell
	// whether it was just created.
	BucketEnsured BucketStatus = "ensured"
)

// BucketResult reports one bucket.
type BucketResult struct {
	Name   string
	Status BucketStatus
}

// Result reports a provisioning run.
type Result struct {
	Executor string
	Skipped  bool
	Reason   string
	Buckets  []BucketResult
}

// Target is everything an executor needs to reach the storage backend.
type Target struct {
	Storage *resolver.Storage

	// CredentialsSecret holds the access and secret key under
	// AccessKeyField and SecretKeyField.
	CredentialsSecret string
	AccessKeyField    string
	SecretKeyField    string

	Buckets []string

	// Platform decides the Job's security context.
	Platform probe.Platform
	// CABundle is trusted in addition to the system roots.
	CABundle []byte
}

// Executor runs the bucket creation for all buckets as one unit.
type Executor interface {
	Name() string
	Run(ctx context.Context, target Target) ([]BucketResult, error)
}

// Input configures one Ensure call.
type Input struct {
	Storage *resolver.Storage

	// StorageSecret is the installer-managed credential secret name, used
	// when the storage credentials are generated.
	StorageSecret string

	Skip bool
	Mode string

	Platform probe.Platform
	CABundle []byte
}

// Provisioner picks an executor and runs it.
type Provisioner struct {
	job    Executor
	direct Executor
}

// NewProvisioner creates a Provisioner from its two executors.
func NewProvisioner(job, direct Executor) *Provisioner {
	return &Provisioner{job: job, direct: direct}
}

// Ensure creates every bucket the storage backend needs. Any error is soft.
func (p *Provisioner) Ensure(ctx context.Context, in Input) (Result, error) {
	if reason := skipReason(in); reason != "" {
		return Result{Skipped: true, Reason: reason}, nil
	}

	exec := p.choose(in.Mode, in.Storage)
	target := Target{
		Storage:           in.Storage,
		CredentialsSecret: in.StorageSecret,
		AccessKeyField:    secrets.AccessKeyField,
		SecretKeyField:    secrets.SecretKeyField,
		Buckets:           in.Storage.BucketNames(),
		Platform:          in.Platform,
		CABundle:          in.CABundle,
	}
	if in.Storage.CredentialSource == resolver.CredentialsUserManaged {
		target.CredentialsSecret = in.Storage.ExistingSecretName
	}

	results, err := exec.Run(ctx, target)
	res := Result{Executor: exec.Name(), Buckets: results}
	if err != nil {
		return res, outcome.Soft(fmt.Errorf("bucket setup via %s failed: %w", exec.Name(), err),
			outcome.WithStrategy(exec.Name()),
			outcome.WithMissing("buckets "+strings.Join(target.Buckets, ", ")),
			outcome.WithRemediation("create the buckets manually, or rerun with BUCKET_EXEC_MODE=job|direct"))
	}
	return res, nil
}

func skipReason(in Input) string {
	switch {
	case in.Skip:
		return "bucket setup disabled"
	case in.Storage == nil:
		return "storage not resolved"
	case in.Storage.CredentialSource == resolver.CredentialsExternalClaim:
		return "buckets are owned by the bucket claim"
	case in.Storage.Strategy == resolver.StrategyFallback:
		return "no storage backend"
	case len(in.Storage.BucketNames()) == 0:
		return "no buckets"
	}
	return ""
}

// choose returns the executor for the mode. In auto mode, cluster-internal
// service endpoints go through a Job and everything else is reached directly.
func (p *Provisioner) choose(mode string, storage *resolver.Storage) Executor {
	switch mode {
	case config.BucketExecJob:
		return p.job
	case config.BucketExecDirect:
		return p.direct
	}
	if IsClusterInternal(storage.Endpoint) {
		return p.job
	}
	return p.direct
}

// IsClusterInternal reports whether host is a Kubernetes service name.
func IsClusterInternal(host string) bool {
	return strings.HasSuffix(host, ".svc") || strings.HasSuffix(host, ".svc.cluster.local") || !strings.Contains(host, ".")
}
