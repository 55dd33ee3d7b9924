// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/cost-onprem/installer/cmd/cost-onprem/handlers"
)

// Root returns the root command for the cost-onprem CLI.
//
// Without a subcommand the root command runs an install, so it carries the
// install flags as well.
func Root() *cobra.Command {
	var flags handlers.Flags
	var opts handlers.InstallOptions

	cmd := &cobra.Command{
		Use:   "cost-onprem",
		Short: "Install Cost Management on-premise on Kubernetes or OpenShift",
		Long: `cost-onprem installs the Cost Management on-premise chart.

It detects the platform, resolves object storage, the Kafka broker and the
identity provider from the cluster, creates the secrets and buckets the chart
needs and installs or upgrades the release.

Settings are read from environment variables; flags take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Install(cmd.Context(), flags, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.Namespace, "namespace", "n", "", "Target namespace (env NAMESPACE, default cost-onprem)")
	pf.StringVar(&flags.ReleaseName, "release-name", "", "Helm release name (env HELM_RELEASE_NAME, default cost-onprem)")
	pf.StringVarP(&flags.ValuesFile, "values", "f", "", "Values file (env VALUES_FILE)")
	pf.StringVar(&flags.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (env KUBECONFIG)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")

	bindInstallFlags(cmd, &opts)

	cmd.AddCommand(Install(&flags))
	cmd.AddCommand(Status(&flags))
	cmd.AddCommand(Health(&flags))
	cmd.AddCommand(Cleanup(&flags))
	cmd.AddCommand(Version())

	return cmd
}
