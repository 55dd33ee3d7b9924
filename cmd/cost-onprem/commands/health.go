package commands

import (
	"github.com/spf13/cobra"

	"github.com/cost-onprem/installer/cmd/cost-onprem/handlers"
)

// Health returns the health command.
//
// It exits non-zero when an in-cluster check fails. The external route or
// ingress check is reported but never fails the command.
func Health(flags *handlers.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Verify the deployed release",
		Long: `Verify the deployed release.

Checks:
  - pods of the release are ready
  - the API status endpoint answers through a temporary port-forward
  - the external route or ingress answers (informational)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Health(cmd.Context(), *flags)
		},
	}
}
