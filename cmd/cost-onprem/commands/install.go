package commands

import (
	"github.com/spf13/cobra"

	"github.com/cost-onprem/installer/cmd/cost-onprem/handlers"
)

// Install returns the install command.
//
// Optional flags:
//
//	--set key=value: Chart override applied after the resolved values (repeatable)
//	--dry-run: Render the manifests to stdout without changing the cluster
func Install(flags *handlers.Flags) *cobra.Command {
	var opts handlers.InstallOptions

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install or upgrade the release",
		Long: `Install or upgrade the Cost Management on-premise release.

Running install again is safe: existing secrets and buckets are kept and the
release is upgraded in place.

Examples:
  # Install into the default namespace
  cost-onprem install

  # Use a values file and override one value
  cost-onprem install -f values.yaml --set ui.replicaCount=2

  # Print the manifests that would be applied
  cost-onprem install --dry-run > manifests.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Install(cmd.Context(), *flags, opts)
		},
	}

	bindInstallFlags(cmd, &opts)

	return cmd
}

func bindInstallFlags(cmd *cobra.Command, opts *handlers.InstallOptions) {
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "Chart override key=value, applied last (repeatable)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Render manifests to stdout instead of applying them")
}
