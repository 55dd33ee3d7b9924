// Package helm drives the chart through the Helm v3 SDK.
//
// Every resolved configuration value reaches the chart as an explicit
// override on an Invocation. Overrides are applied in order on top of the
// caller's values file, so a later override of the same key wins. The same
// Invocation either renders the chart client-side (dry run) or installs and
// upgrades the release in the cluster.
package helm
