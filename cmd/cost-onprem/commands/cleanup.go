package commands

import (
	"github.com/spf13/cobra"

	"github.com/cost-onprem/installer/cmd/cost-onprem/handlers"
)

// Cleanup returns the cleanup command.
//
// Optional flags:
//
//	--complete: Also delete PVCs, installer secrets and the namespace
//	--yes: Skip the confirmation prompt
func Cleanup(flags *handlers.Flags) *cobra.Command {
	var opts handlers.CleanupOptions

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Uninstall the release",
		Long: `Uninstall the release.

With --complete the release's persistent volume claims, the secrets created
by the installer and the namespace are deleted as well.

WARNING: --complete is irreversible. All stored cost data is lost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), *flags, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Complete, "complete", false, "Also delete PVCs, installer secrets and the namespace")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
