package provisioning

import (
	"github.com/cost-onprem/installer/internal/buckets"
	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/health"
	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/resolver"
	"github.com/cost-onprem/installer/internal/secrets"
	"github.com/cost-onprem/installer/internal/util/prerequisites"
)

// Components are the collaborators of an install run.
type Components struct {
	Cluster  Cluster
	Probe    FactProbe
	Identity IdentityResolver
	Storage  StorageResolver
	Broker   BrokerResolver
	Secrets  SecretProvisioner
	Buckets  BucketProvisioner
	Deployer Deployer
	Verifier func(st *ResolvedConfiguration) HealthVerifier
	Tools    []prerequisites.Tool
}

// NewComponents wires the production collaborators around one cluster client.
func NewComponents(kc *kube.Client, settings *config.Settings, deployer Deployer) Components {
	timeouts := settings.Timeouts
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	ns, release := settings.Namespace, settings.ReleaseName

	return Components{
		Cluster: kc,
		Probe: probe.New(kc, probe.Overrides{
			ClusterDomain: settings.ClusterDomain,
			StorageClass:  settings.StorageClass,
		}),
		Identity: resolver.NewIdentityResolver(kc),
		Storage:  resolver.NewStorageResolver(kc),
		Broker:   resolver.NewBrokerResolver(kc, resolver.NewBrokerCache(settings.CacheDir)),
		Secrets:  secrets.New(kc, ns, release),
		Buckets: buckets.NewProvisioner(
			buckets.NewJobExecutor(kc, ns, release, timeouts.BucketJob),
			buckets.NewDirectExecutor(kc, ns),
		),
		Deployer: deployer,
		Verifier: func(st *ResolvedConfiguration) HealthVerifier {
			return health.NewVerifier(kc, health.NewSPDYForwarder(kc), health.Options{
				Namespace:  ns,
				Release:    release,
				Platform:   st.Platform,
				Timeout:    timeouts.HealthProbe,
				Attempts:   timeouts.RetryMaxAttempts,
				RetryDelay: timeouts.RetryInitialDelay,
				CABundle:   st.TrustBundle,
			})
		},
		Tools: append(prerequisites.ClientTools(), prerequisites.OpenShiftTools()...),
	}
}

// NewInstallPipeline returns the install phases in order. A dry run only
// resolves and renders: nothing is written to the cluster.
func NewInstallPipeline(c Components, dryRun bool) []Phase {
	names := c.Secrets.Names()

	phases := []Phase{
		&CheckPrereqsPhase{Cluster: c.Cluster, Tools: c.Tools},
		&DetectPlatformPhase{Probe: c.Probe},
		&ResolveIdentityPhase{Resolver: c.Identity},
		&ResolveStoragePhase{Resolver: c.Storage},
		&ResolveBrokerPhase{Resolver: c.Broker, ClusterKey: c.Cluster.ServerURL()},
	}
	if !dryRun {
		phases = append(phases,
			&ProvisionSecretsPhase{Cluster: c.Cluster, Secrets: c.Secrets},
			&ProvisionBucketsPhase{Buckets: c.Buckets, SecretNames: names},
		)
	}
	phases = append(phases,
		&PreflightPhase{},
		&RenderApplyPhase{Deployer: c.Deployer, SecretNames: names},
	)
	if !dryRun {
		phases = append(phases,
			&WaitReadyPhase{Cluster: c.Cluster},
			&HealthCheckPhase{Verifier: c.Verifier},
		)
	}
	return phases
}
