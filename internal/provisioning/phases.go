package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/cost-onprem/installer/internal/buckets"
	"github.com/cost-onprem/installer/internal/helm"
	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/resolver"
	"github.com/cost-onprem/installer/internal/secrets"
	"github.com/cost-onprem/installer/internal/util/prerequisites"
)

// Phase names.
const (
	PhaseCheckPrereqs     = "check-prereqs"
	PhaseDetectPlatform   = "detect-platform"
	PhaseResolveIdentity  = "resolve-identity"
	PhaseResolveStorage   = "resolve-storage"
	PhaseResolveBroker    = "resolve-broker"
	PhaseProvisionSecrets = "provision-secrets"
	PhaseProvisionBuckets = "provision-buckets"
	PhasePreflight        = "preflight"
	PhaseRenderApply      = "render-apply"
	PhaseWaitReady        = "wait-ready"
	PhaseHealthCheck      = "health-check"
)

// CheckPrereqsPhase validates the settings and the cluster connection.
type CheckPrereqsPhase struct {
	Cluster Cluster
	// Tools lists client tools to look for; missing ones only warn.
	Tools []prerequisites.Tool
}

func (p *CheckPrereqsPhase) Name() string { return PhaseCheckPrereqs }

func (p *CheckPrereqsPhase) Provision(ctx *Context) error {
	if err := ctx.Settings.Validate(); err != nil {
		return outcome.Fatal(err, outcome.WithRemediation("fix the environment variables or flags named above"))
	}

	version, err := p.Cluster.Ping(ctx)
	if err != nil {
		return outcome.Fatal(err,
			outcome.WithMissing("reachable Kubernetes API server"),
			outcome.WithRemediation("check KUBECONFIG / --kubeconfig and that you are logged in to the cluster"))
	}
	ctx.Observer.Printf("Connected to %s (%s)", p.Cluster.ServerURL(), version)

	results := prerequisites.Check(p.Tools)
	if results.HasErrors() {
		return outcome.Fatal(results.Error())
	}
	for _, tool := range results.Missing {
		ctx.Warn(outcome.Soft(fmt.Errorf("%s not found in PATH: %s", tool.Name, tool.Description),
			outcome.WithRemediation(tool.InstallURL)))
	}
	return nil
}

// DetectPlatformPhase identifies the platform and gathers cluster facts.
type DetectPlatformPhase struct {
	Probe FactProbe
}

func (p *DetectPlatformPhase) Name() string { return PhaseDetectPlatform }

func (p *DetectPlatformPhase) Provision(ctx *Context) error {
	platform, err := p.Probe.DetectPlatform(ctx)
	if err != nil {
		return err
	}
	ctx.State.Platform = platform

	facts, err := p.Probe.Gather(ctx, platform, ctx.State.Namespace)
	if err != nil {
		return err
	}
	ctx.State.Facts = facts
	ctx.Observer.Printf("Platform %s, Kubernetes %s", platform, facts.ServerVersion)
	return nil
}

// ResolveIdentityPhase locates the identity provider. Absence is soft.
type ResolveIdentityPhase struct {
	Resolver IdentityResolver
}

func (p *ResolveIdentityPhase) Name() string { return PhaseResolveIdentity }

func (p *ResolveIdentityPhase) Provision(ctx *Context) error {
	identity, err := p.Resolver.Resolve(ctx, resolver.IdentityInput{
		Platform:  ctx.State.Platform,
		Namespace: ctx.Settings.KeycloakNamespace,
		URL:       ctx.Settings.KeycloakURL,
	})
	if identity == nil {
		identity = &resolver.Identity{}
	}
	ctx.State.Identity = identity
	if identity.Found {
		ctx.Observer.Printf("Identity provider %s in %s", identity.URL, identity.Namespace)
	}
	return err
}

// ResolveStoragePhase selects the object storage backend.
type ResolveStoragePhase struct {
	Resolver StorageResolver
}

func (p *ResolveStoragePhase) Name() string { return PhaseResolveStorage }

func (p *ResolveStoragePhase) Provision(ctx *Context) error {
	storage, err := p.Resolver.Resolve(ctx, resolver.StorageInput{
		Namespace:      ctx.State.Namespace,
		Values:         ctx.Values,
		Env:            ctx.Settings.Storage,
		RequireStorage: ctx.Settings.RequireStorage,
	})
	if err != nil {
		return err
	}
	ctx.State.Storage = storage
	for _, w := range storage.Warnings {
		ctx.Warn(outcome.Soft(errors.New(w), outcome.WithStrategy(string(storage.Strategy))))
	}
	ctx.Observer.Printf("Storage %s via %s (credentials %s)", storage.URL(), storage.Strategy, storage.CredentialSource)
	return nil
}

// ResolveBrokerPhase finds the Kafka bootstrap address. Absence is fatal.
type ResolveBrokerPhase struct {
	Resolver   BrokerResolver
	ClusterKey string
}

func (p *ResolveBrokerPhase) Name() string { return PhaseResolveBroker }

func (p *ResolveBrokerPhase) Provision(ctx *Context) error {
	broker, err := p.Resolver.Resolve(ctx, resolver.BrokerInput{
		Bootstrap:        ctx.Settings.BrokerBootstrap,
		SecurityProtocol: ctx.Settings.BrokerSecurityProtocol,
		ClusterKey:       p.ClusterKey,
	})
	if err != nil {
		return err
	}
	if broker == nil || broker.BootstrapAddress == "" {
		return outcome.Fatal(fmt.Errorf("no broker bootstrap address resolved"),
			outcome.WithMissing("Kafka bootstrap address"),
			outcome.WithRemediation("set KAFKA_BOOTSTRAP_SERVERS"))
	}
	ctx.State.Broker = broker
	for _, w := range broker.Warnings {
		ctx.Warn(outcome.Soft(errors.New(w), outcome.WithStrategy(broker.Source)))
	}
	ctx.Observer.Printf("Broker %s (%s, %s)", broker.BootstrapAddress, broker.SecurityProtocol, broker.Source)
	return nil
}

// ProvisionSecretsPhase creates the release's prerequisite secrets.
type ProvisionSecretsPhase struct {
	Cluster Cluster
	Secrets SecretProvisioner
}

func (p *ProvisionSecretsPhase) Name() string { return PhaseProvisionSecrets }

func (p *ProvisionSecretsPhase) Provision(ctx *Context) error {
	created, err := p.Cluster.EnsureNamespace(ctx, ctx.State.Namespace)
	if err != nil {
		return outcome.Fatal(err, outcome.WithMissing("namespace "+ctx.State.Namespace))
	}
	if created {
		LogResource(ctx.Observer, PhaseProvisionSecrets, EventResourceCreated, "namespace", ctx.State.Namespace, "")
	}

	identityURL := ""
	if ctx.State.Identity != nil {
		identityURL = ctx.State.Identity.URL
	}

	steps := []func(context.Context) (secrets.Result, error){
		p.Secrets.EnsureDatabaseCredentials,
		p.Secrets.EnsureSigningKey,
		p.Secrets.EnsureSessionSecret,
		func(c context.Context) (secrets.Result, error) {
			return p.Secrets.EnsureStorageCredentials(c, secrets.StorageCredentialsInput{
				Storage:   ctx.State.Storage,
				AccessKey: ctx.Settings.Storage.AccessKey,
				SecretKey: ctx.Settings.Storage.SecretKey,
				Skip:      ctx.Settings.SkipStorageSetup,
			})
		},
		func(c context.Context) (secrets.Result, error) {
			return p.Secrets.EnsureOAuthClientSecret(c, ctx.State.Identity)
		},
		func(c context.Context) (secrets.Result, error) {
			return p.Secrets.EnsureTrustAnchor(c, identityURL)
		},
	}

	for _, step := range steps {
		res, err := step(ctx)
		if res.Name != "" {
			ctx.State.Secrets = append(ctx.State.Secrets, res)
			LogResource(ctx.Observer, PhaseProvisionSecrets, secretEvent(res.Status), "secret", res.Name, res.Detail)
		}
		if err := ctx.handle(err); err != nil {
			return err
		}
	}

	bundle, err := p.Secrets.TrustBundle(ctx)
	if err != nil {
		return ctx.handle(outcome.Soft(err, outcome.WithMissing("secret "+p.Secrets.Names().TrustAnchor)))
	}
	ctx.State.TrustBundle = bundle
	return nil
}

func secretEvent(status secrets.Status) EventType {
	switch status {
	case secrets.StatusCreated:
		return EventResourceCreated
	case secrets.StatusExists:
		return EventResourceExists
	default:
		return EventResourceSkipped
	}
}

// ProvisionBucketsPhase creates the storage buckets. Failure is soft.
type ProvisionBucketsPhase struct {
	Buckets     BucketProvisioner
	SecretNames secrets.Names
}

func (p *ProvisionBucketsPhase) Name() string { return PhaseProvisionBuckets }

func (p *ProvisionBucketsPhase) Provision(ctx *Context) error {
	res, err := p.Buckets.Ensure(ctx, buckets.Input{
		Storage:       ctx.State.Storage,
		StorageSecret: p.SecretNames.Storage,
		Skip:          ctx.Settings.SkipBucketSetup || ctx.Settings.SkipStorageSetup,
		Mode:          ctx.Settings.BucketExecMode,
		Platform:      ctx.State.Platform,
		CABundle:      ctx.State.TrustBundle,
	})
	ctx.State.Buckets = res

	if res.Skipped {
		ctx.Observer.Printf("Bucket setup skipped: %s", res.Reason)
	}
	for _, b := range res.Buckets {
		LogResource(ctx.Observer, PhaseProvisionBuckets, bucketEvent(b.Status), "bucket", b.Name, "via "+res.Executor)
	}
	return err
}

func bucketEvent(status buckets.BucketStatus) EventType {
	if status == buckets.BucketExists {
		return EventResourceExists
	}
	return EventResourceCreated
}

// PreflightPhase warns once per fact the run could not determine.
type PreflightPhase struct{}

func (p *PreflightPhase) Name() string { return PhasePreflight }

func (p *PreflightPhase) Provision(ctx *Context) error {
	for _, w := range preflightWarnings(ctx.State) {
		ctx.Observer.Event(Event{Type: EventPreflightWarning, Phase: PhasePreflight, Message: w})
		ctx.State.Warnings = append(ctx.State.Warnings, Warning{Phase: PhasePreflight, Err: errors.New(w), At: time.Now()})
	}
	return nil
}

func preflightWarnings(st *ResolvedConfiguration) []string {
	var warnings []string
	if st.Facts != nil {
		if st.Facts.StorageClassName == "" {
			warnings = append(warnings, "no default storage class detected; set STORAGE_CLASS if persistent volumes stay pending")
		}
		if st.Facts.ClusterDomain == "" {
			warnings = append(warnings, "cluster ingress domain not detected; set CLUSTER_DOMAIN for external routes")
		}
		if st.Facts.FSGroup == "" && st.Platform == probe.PlatformOpenShift {
			warnings = append(warnings, "namespace supplemental group range not detected; the chart default fsGroup applies")
		}
	}
	if st.Identity != nil && st.Identity.Found && st.Identity.URL == "" {
		warnings = append(warnings, "identity provider found in "+st.Identity.Namespace+" but its URL was not detected; set KEYCLOAK_URL")
	}
	if st.Storage != nil && st.Storage.ProvisionsBuckets() && st.Buckets.Skipped {
		warnings = append(warnings, "bucket setup was skipped; buckets "+strings.Join(st.Storage.BucketNames(), ", ")+" must already exist")
	}
	return warnings
}

// RenderApplyPhase builds the chart invocation and renders or applies it.
type RenderApplyPhase struct {
	Deployer    Deployer
	SecretNames secrets.Names
}

func (p *RenderApplyPhase) Name() string { return PhaseRenderApply }

func (p *RenderApplyPhase) Provision(ctx *Context) error {
	inv, err := BuildInvocation(ctx.Settings, ctx.Values, ctx.State, p.SecretNames)
	if err != nil {
		return outcome.Fatal(err, outcome.WithRemediation("fix the --set override"))
	}
	ctx.State.Invocation = inv
	ctx.Observer.Printf("Chart overrides: %s", strings.Join(inv.Keys(), ", "))

	ch, err := p.Deployer.LoadChart(ctx.Settings.Chart)
	if err != nil {
		return outcome.Fatal(err,
			outcome.WithMissing("chart "+ctx.Settings.Chart.Name),
			outcome.WithRemediation("check CHART_REPO_URL / CHART_VERSION, or USE_LOCAL_CHART=true with LOCAL_CHART_PATH"))
	}

	if ctx.DryRun {
		manifests, err := helm.Render(ch, inv)
		if err != nil {
			return outcome.Fatal(err)
		}
		ctx.State.Manifests = manifests
		if _, err := ctx.Out.Write(manifests); err != nil {
			return fmt.Errorf("failed to write manifests: %w", err)
		}
		return nil
	}

	rel, err := p.Deployer.InstallOrUpgrade(ctx, ch, inv, ctx.Timeouts.WaitReady)
	if err != nil {
		return outcome.Fatal(err, outcome.WithRemediation(
			fmt.Sprintf("inspect with: helm history %s -n %s", ctx.State.ReleaseName, ctx.State.Namespace)))
	}
	info := &ReleaseInfo{Name: rel.Name, Revision: rel.Version}
	if rel.Info != nil {
		info.Status = rel.Info.Status.String()
	}
	ctx.State.Release = info
	ctx.Observer.Printf("Release %s revision %d %s", info.Name, info.Revision, info.Status)
	return nil
}

// WaitReadyPhase polls the release workloads until all are ready.
type WaitReadyPhase struct {
	Cluster      Cluster
	PollInterval time.Duration
}

func (p *WaitReadyPhase) Name() string { return PhaseWaitReady }

func (p *WaitReadyPhase) Provision(ctx *Context) error {
	interval := p.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	selector := kube.ReleaseSelector(ctx.State.ReleaseName)

	var pending []string
	err := wait.PollUntilContextTimeout(ctx, interval, ctx.Timeouts.WaitReady, true, func(c context.Context) (bool, error) {
		workloads, err := p.Cluster.ListWorkloads(c, ctx.State.Namespace, selector)
		if err != nil {
			// Transient API errors are retried until the timeout.
			ctx.Observer.Printf("Listing workloads failed: %v", err)
			return false, nil
		}
		ctx.State.Workloads = workloads

		pending = pending[:0]
		for _, w := range workloads {
			if !w.IsReady() {
				pending = append(pending, fmt.Sprintf("%s/%s %d/%d", w.Kind, w.Name, w.Ready, w.Desired))
			}
		}
		return len(workloads) > 0 && len(pending) == 0, nil
	})
	if err != nil {
		missing := "release workloads"
		if len(pending) > 0 {
			missing = strings.Join(pending, ", ")
		}
		return outcome.Fatal(fmt.Errorf("workloads not ready after %v: %w", ctx.Timeouts.WaitReady, err),
			outcome.WithMissing(missing),
			outcome.WithRemediation(fmt.Sprintf("kubectl get pods -n %s -l %s", ctx.State.Namespace, selector)))
	}
	ctx.Observer.Printf("%d workloads ready", len(ctx.State.Workloads))
	return nil
}

// HealthCheckPhase verifies the release. Any failure is soft here.
type HealthCheckPhase struct {
	// Verifier builds the verifier once the platform is known.
	Verifier func(st *ResolvedConfiguration) HealthVerifier
}

func (p *HealthCheckPhase) Name() string { return PhaseHealthCheck }

func (p *HealthCheckPhase) Provision(ctx *Context) error {
	report := p.Verifier(ctx.State).Verify(ctx)
	ctx.State.Health = report
	for _, c := range report.Checks {
		if c.External && !c.Passed {
			ctx.Warn(outcome.Soft(fmt.Errorf("%s: %s", c.Name, c.Detail)))
		}
	}
	if err := report.Err(); err != nil {
		return outcome.Soft(err, outcome.WithRemediation("rerun later with: cost-onprem health"))
	}
	return nil
}
