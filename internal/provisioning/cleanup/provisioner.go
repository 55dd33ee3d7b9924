package cleanup

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/provisioning"
	"github.com/cost-onprem/installer/internal/util/labels"
)

// PhaseName is the phase name used in logs and metrics.
const PhaseName = "cleanup"

// Uninstaller is implemented by *helm.Client.
type Uninstaller interface {
	Uninstall(name string, timeout time.Duration) (bool, error)
}

// Provisioner tears an installation down.
type Provisioner struct {
	client   *kube.Client
	releases Uninstaller

	// Complete also deletes PVCs, installer secrets and the namespace.
	Complete     bool
	PollInterval time.Duration
}

// NewProvisioner creates a cleanup provisioner.
func NewProvisioner(client *kube.Client, releases Uninstaller, complete bool) *Provisioner {
	return &Provisioner{
		client:       client,
		releases:     releases,
		Complete:     complete,
		PollInterval: 2 * time.Second,
	}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return PhaseName }

// Provision implements provisioning.Phase.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	ns, release := ctx.State.Namespace, ctx.State.ReleaseName
	timeout := ctx.Timeouts.Delete

	removed, err := p.releases.Uninstall(release, timeout)
	if err != nil {
		return outcome.Fatal(err, outcome.WithRemediation(fmt.Sprintf("helm uninstall %s -n %s", release, ns)))
	}
	if removed {
		ctx.Observer.Printf("Release %s uninstalled", release)
	} else {
		ctx.Observer.Printf("Release %s not found", release)
	}

	if !p.Complete {
		return nil
	}

	pvcs, err := p.client.ListPVCs(ctx, ns, kube.ReleaseSelector(release))
	if err != nil {
		return err
	}
	for _, pvc := range pvcs {
		if err := p.client.DeletePVC(ctx, ns, pvc.Name); err != nil {
			return err
		}
		provisioning.LogResource(ctx.Observer, PhaseName, provisioning.EventResourceDeleted, "pvc", pvc.Name, "")
	}

	secrets, err := p.client.ListSecrets(ctx, ns, labels.SelectorForRelease(release))
	if err != nil {
		return err
	}
	for _, s := range secrets {
		if err := p.client.DeleteSecret(ctx, ns, s.Name); err != nil {
			return err
		}
		provisioning.LogResource(ctx.Observer, PhaseName, provisioning.EventResourceDeleted, "secret", s.Name, "")
	}

	if err := p.client.DeleteNamespace(ctx, ns); err != nil {
		return err
	}
	if err := p.waitNamespaceGone(ctx, ns, timeout); err != nil {
		return outcome.Fatal(err,
			outcome.WithMissing("namespace "+ns+" deletion"),
			outcome.WithRemediation(fmt.Sprintf("kubectl get namespace %s -o yaml  # check finalizers", ns)))
	}
	provisioning.LogResource(ctx.Observer, PhaseName, provisioning.EventResourceDeleted, "namespace", ns, "")
	return nil
}

func (p *Provisioner) waitNamespaceGone(ctx context.Context, ns string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, p.PollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		_, found, err := p.client.GetNamespace(ctx, ns)
		if err != nil {
			return false, nil
		}
		return !found, nil
	})
	if err != nil {
		return fmt.Errorf("namespace %s still present after %v: %w", ns, timeout, err)
	}
	return nil
}
