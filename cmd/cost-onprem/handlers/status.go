package handlers

import (
	"context"
	"fmt"

	"github.com/cost-onprem/installer/internal/helm"
	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/probe"
)

// Status handles the status command.
func Status(ctx context.Context, flags Flags) error {
	s, err := openSession(flags)
	if err != nil {
		return err
	}
	defer s.cleanup()

	ns, release := s.settings.Namespace, s.settings.ReleaseName

	rel, found, err := s.deployer.Status(release)
	if err != nil {
		return err
	}

	pr := probe.New(s.kube, probe.Overrides{ClusterDomain: s.settings.ClusterDomain, StorageClass: s.settings.StorageClass})
	platform, err := pr.DetectPlatform(ctx)
	if err != nil {
		return err
	}
	facts, err := pr.Gather(ctx, platform, ns)
	if err != nil {
		return err
	}

	workloads, err := s.kube.ListWorkloads(ctx, ns, kube.ReleaseSelector(release))
	if err != nil {
		return err
	}

	printStatus(newPrinter(stdout), statusView{
		Namespace: ns,
		Release:   release,
		Found:     found,
		Status:    rel,
		Platform:  platform,
		Facts:     facts,
		Workloads: workloads,
	})
	return nil
}

type statusView struct {
	Namespace string
	Release   string
	Found     bool
	Status    *helm.ReleaseStatus
	Platform  probe.Platform
	Facts     *probe.Facts
	Workloads []kube.WorkloadStatus
}

func printStatus(p *printer, v statusView) {
	p.title("cost-onprem status: " + v.Release)

	p.section("Release")
	if !v.Found {
		p.mark("fail", v.Release, "not installed in "+v.Namespace)
	} else {
		p.field("Namespace", v.Namespace)
		p.field("Revision", fmt.Sprintf("%d", v.Status.Revision))
		p.field("Status", v.Status.Status)
		p.field("Chart", v.Status.ChartVersion)
		p.field("App version", v.Status.AppVersion)
		if !v.Status.Updated.IsZero() {
			p.field("Updated", v.Status.Updated.Format("2006-01-02 15:04:05 MST"))
		}
	}

	p.section("Workloads")
	if len(v.Workloads) == 0 {
		p.mark("warn", "none", "no workloads labelled for the release")
	}
	for _, w := range v.Workloads {
		state := "fail"
		if w.IsReady() {
			state = "ok"
		}
		p.mark(state, w.Kind+"/"+w.Name, fmt.Sprintf("%d/%d ready", w.Ready, w.Desired))
	}

	p.section("Cluster")
	p.field("Platform", string(v.Platform))
	if f := v.Facts; f != nil {
		p.field("Kubernetes", f.ServerVersion)
		p.field("Cluster domain", f.ClusterDomain)
		p.field("Storage class", f.StorageClassName)
		p.field("fsGroup", f.FSGroup)
		p.field("Storage operator", yesNo(f.StorageOperatorPresent))
		p.field("Keycloak", yesNo(f.IdentityProviderPresent))
		p.field("Kafka", yesNo(f.BrokerPresent))
	}
	fmt.Fprintln(p.w)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
