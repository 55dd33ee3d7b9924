// Package provisioning runs an installation as a fixed sequence of phases.
//
// A run walks CheckPrereqs, DetectPlatform, ResolveIdentity, ResolveStorage,
// ResolveBroker, ProvisionSecrets, ProvisionBuckets, Preflight, RenderApply,
// WaitReady and HealthCheck, strictly forward and without retries between
// phases. Every phase reads and extends one [ResolvedConfiguration] owned by
// the run's [Context].
//
// A phase error is classified with [outcome.SeverityOf]: soft failures are
// recorded as warnings and the run advances, anything else stops the run
// before later phases see partial state. A dry run stops after RenderApply
// and never writes to the cluster.
package provisioning
