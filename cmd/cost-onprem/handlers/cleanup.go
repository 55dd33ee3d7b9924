package handlers

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/cost-onprem/installer/internal/provisioning/cleanup"
)

// CleanupOptions are the cleanup flags.
type CleanupOptions struct {
	Complete bool
	Yes      bool
}

// confirm asks before destructive work. Replaced in tests.
var confirm = func(ctx context.Context, title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&ok),
		),
	).RunWithContext(ctx)
	return ok, err
}

// Cleanup handles the cleanup command.
//
// On a terminal the user confirms first unless --yes is given.
func Cleanup(ctx context.Context, flags Flags, opts CleanupOptions) error {
	s, err := openSession(flags)
	if err != nil {
		return err
	}
	defer s.cleanup()

	ns, release := s.settings.Namespace, s.settings.ReleaseName
	if !opts.Yes && newPrinter(stdout).styled {
		description := fmt.Sprintf("Uninstalls release %s from %s.", release, ns)
		if opts.Complete {
			description = fmt.Sprintf("Uninstalls release %s and deletes its volumes, secrets and the namespace %s. Stored data is lost.", release, ns)
		}
		ok, err := confirm(ctx, "Remove cost-onprem?", description)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "Cleanup cancelled")
			return nil
		}
	}

	pctx := s.newContext(ctx)
	if err := s.runPhases(pctx, cleanup.NewProvisioner(s.kube, s.deployer, opts.Complete)); err != nil {
		printFailure(stderr, err)
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Fprintf(stdout, "Release %s removed from %s\n", release, ns)
	return nil
}
