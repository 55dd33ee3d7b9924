package handlers

import (
	"context"
	"fmt"

	"github.com/cost-onprem/installer/internal/health"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/secrets"
)

// Health handles the health command. It fails when any in-cluster check
// fails; the external check only reports.
func Health(ctx context.Context, flags Flags) error {
	s, err := openSession(flags)
	if err != nil {
		return err
	}
	defer s.cleanup()

	platform, err := probe.New(s.kube, probe.Overrides{}).DetectPlatform(ctx)
	if err != nil {
		return err
	}

	bundle, err := secrets.New(s.kube, s.settings.Namespace, s.settings.ReleaseName).TrustBundle(ctx)
	if err != nil {
		s.log.Error(err, "Trust anchor not read; the external check uses system roots only")
	}

	t := s.settings.Timeouts
	verifier := health.NewVerifier(s.kube, health.NewSPDYForwarder(s.kube), health.Options{
		Namespace:  s.settings.Namespace,
		Release:    s.settings.ReleaseName,
		Platform:   platform,
		Timeout:    t.HealthProbe,
		Attempts:   t.RetryMaxAttempts,
		RetryDelay: t.RetryInitialDelay,
		CABundle:   bundle,
	})
	report := verifier.Verify(ctx)

	printHealth(newPrinter(stdout), s.settings.ReleaseName, report)
	if err := report.Err(); err != nil {
		return err
	}
	return nil
}

func printHealth(p *printer, release string, report *health.Report) {
	p.title("cost-onprem health: " + release)
	for _, c := range report.Checks {
		label := c.Name
		if c.External {
			label += " (informational)"
		}
		p.mark(checkState(c.Passed, c.External), label, c.Detail)
	}
	fmt.Fprintln(p.w)
}
