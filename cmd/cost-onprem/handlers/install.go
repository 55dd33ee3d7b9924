package handlers

import (
	"context"
	"fmt"

	"github.com/cost-onprem/installer/internal/provisioning"
	"github.com/cost-onprem/installer/internal/secrets"
)

// InstallOptions are the install-only flags.
type InstallOptions struct {
	// Set holds key=value overrides in command-line order.
	Set    []string
	DryRun bool
}

// Install handles the install command.
//
// It runs the install phases against the cluster. A dry run resolves
// everything, renders the chart to stdout and changes nothing.
func Install(ctx context.Context, flags Flags, opts InstallOptions) error {
	s, err := openSession(flags)
	if err != nil {
		return err
	}
	defer s.cleanup()

	s.settings.SetOverrides = append(s.settings.SetOverrides, opts.Set...)

	pctx := s.newContext(ctx)
	pctx.DryRun = opts.DryRun
	pctx.Out = stdout

	components := provisioning.NewComponents(s.kube, s.settings, s.deployer)
	err = s.runPhases(pctx, provisioning.NewInstallPipeline(components, opts.DryRun)...)
	if err != nil {
		printFailure(stderr, err)
		return fmt.Errorf("install failed: %w", err)
	}

	if !opts.DryRun {
		printInstallSummary(newPrinter(stdout), pctx.State)
	}
	return nil
}

func printInstallSummary(p *printer, st *provisioning.ResolvedConfiguration) {
	p.title("cost-onprem: " + st.ReleaseName)

	if st.Release != nil {
		p.field("Release", fmt.Sprintf("%s revision %d (%s)", st.Release.Name, st.Release.Revision, st.Release.Status))
	}
	p.field("Namespace", st.Namespace)
	p.field("Platform", string(st.Platform))
	if st.Storage != nil {
		p.field("Storage", fmt.Sprintf("%s (%s)", st.Storage.URL(), st.Storage.Strategy))
	}
	if st.Broker != nil {
		p.field("Kafka", fmt.Sprintf("%s (%s)", st.Broker.BootstrapAddress, st.Broker.Source))
	}
	if st.Identity != nil && st.Identity.Found {
		p.field("Identity", st.Identity.URL)
	} else {
		p.field("Identity", "")
	}

	if len(st.Secrets) > 0 {
		p.section("Secrets")
		for _, res := range st.Secrets {
			state := "ok"
			if res.Status == secrets.StatusSkipped {
				state = "warn"
			}
			p.mark(state, res.Name, string(res.Status))
		}
	}

	if st.Health != nil {
		p.section("Health")
		for _, c := range st.Health.Checks {
			p.mark(checkState(c.Passed, c.External), c.Name, c.Detail)
		}
	}

	if len(st.Warnings) > 0 {
		p.section(fmt.Sprintf("Warnings (%d)", len(st.Warnings)))
		for _, w := range st.Warnings {
			p.mark("warn", w.Phase, w.Err.Error())
		}
	}
	fmt.Fprintln(p.w)
}

func checkState(passed, external bool) string {
	switch {
	case passed:
		return "ok"
	case external:
		return "warn"
	default:
		return "fail"
	}
}
