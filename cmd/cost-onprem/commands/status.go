package commands

import (
	"github.com/spf13/cobra"

	"github.com/cost-onprem/installer/cmd/cost-onprem/handlers"
)

// Status returns the command printing release, workload and cluster facts.
func Status(flags *handlers.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show release status, workload readiness and detected facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), *flags)
		},
	}
}
