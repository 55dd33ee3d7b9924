package provisioning

import (
	"time"

	"github.com/cost-onprem/installer/internal/buckets"
	"github.com/cost-onprem/installer/internal/health"
	"github.com/cost-onprem/installer/internal/helm"
	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/resolver"
	"github.com/cost-onprem/installer/internal/secrets"
)

// ResolvedConfiguration accumulates everything a run learns and does. It is
// created when the run starts, extended by each phase and never persisted.
type ResolvedConfiguration struct {
	// Namespace and ReleaseName are fixed for the whole run.
	Namespace   string
	ReleaseName string

	Platform probe.Platform
	Facts    *probe.Facts

	Identity *resolver.Identity
	Storage  *resolver.Storage
	Broker   *resolver.Broker

	Secrets     []secrets.Result
	// TrustBundle is the stored ingress CA, trusted by the installer's own
	// TLS clients.
	TrustBundle []byte
	Buckets     buckets.Result

	Invocation *helm.Invocation
	Release    *ReleaseInfo
	// Manifests holds the rendered chart of a dry run.
	Manifests []byte

	Workloads []kube.WorkloadStatus
	Health    *health.Report

	Warnings []Warning
}

// ReleaseInfo identifies the applied release revision.
type ReleaseInfo struct {
	Name     string
	Revision int
	Status   string
}

// Warning is a soft failure recorded during the run.
type Warning struct {
	Phase string
	Err   error
	At    time.Time
}

// NewResolvedConfiguration creates the state of a run.
func NewResolvedConfiguration(namespace, releaseName string) *ResolvedConfiguration {
	return &ResolvedConfiguration{
		Namespace:   namespace,
		ReleaseName: releaseName,
	}
}

// SecretStatus returns the provisioning status of the named secret, or ""
// when it was not handled in this run.
func (r *ResolvedConfiguration) SecretStatus(name string) secrets.Status {
	for _, s := range r.Secrets {
		if s.Name == name {
			return s.Status
		}
	}
	return ""
}

// secretAvailable reports whether the named secret exists after provisioning.
func (r *ResolvedConfiguration) secretAvailable(name string) bool {
	status := r.SecretStatus(name)
	return status == secrets.StatusCreated || status == secrets.StatusExists
}
