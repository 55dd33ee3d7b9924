package helm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/registry"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/storage/driver"

	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/kube"
)

// ReleaseStatus summarises a deployed release.
type ReleaseStatus struct {
	Name         string
	Namespace    string
	Revision     int
	Status       string
	ChartVersion string
	AppVersion   string
	Updated      time.Time
}

// Client runs Helm actions against one namespace.
type Client struct {
	cfg       *action.Configuration
	namespace string
	workDir   string
	settings  *cli.EnvSettings
}

// NewClient creates a Helm client that reuses the cluster connection of kc.
// Remote charts are downloaded below workDir, which the caller owns.
func NewClient(kc *kube.Client, kubeconfigPath, namespace, workDir string, log logr.Logger) (*Client, error) {
	cfg := new(action.Configuration)
	getter := newRESTClientGetter(kc.RESTConfig(), kubeconfigPath, namespace)

	debug := func(format string, v ...interface{}) {
		log.V(1).Info(fmt.Sprintf(format, v...))
	}
	if err := cfg.Init(getter, namespace, "secret", debug); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	registryClient, err := registry.NewClient(
		registry.ClientOptDebug(false),
		registry.ClientOptWriter(io.Discard),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}
	cfg.RegistryClient = registryClient

	return NewClientFromConfig(cfg, namespace, workDir), nil
}

// NewClientFromConfig wraps an existing action configuration.
func NewClientFromConfig(cfg *action.Configuration, namespace, workDir string) *Client {
	settings := cli.New()
	settings.SetNamespace(namespace)
	if workDir != "" {
		settings.RepositoryCache = filepath.Join(workDir, "cache")
		settings.RepositoryConfig = filepath.Join(workDir, "repositories.yaml")
	}
	return &Client{
		cfg:       cfg,
		namespace: namespace,
		workDir:   workDir,
		settings:  settings,
	}
}

// LoadChart loads the chart from a local directory or archive, or downloads
// it from the chart repository.
func (c *Client) LoadChart(src config.ChartSource) (*chart.Chart, error) {
	if src.UseLocal {
		if _, err := os.Stat(src.LocalPath); err != nil {
			return nil, fmt.Errorf("local chart %s: %w", src.LocalPath, err)
		}
		ch, err := loader.Load(src.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load chart %s: %w", src.LocalPath, err)
		}
		return ch, nil
	}

	if c.workDir != "" {
		if err := os.MkdirAll(c.settings.RepositoryCache, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create chart cache: %w", err)
		}
	}

	locator := action.NewInstall(c.cfg)
	locator.RepoURL = src.RepoURL
	locator.Version = src.Version

	chartPath, err := locator.LocateChart(src.Name, c.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to locate chart %s in %s: %w", src.Name, src.RepoURL, err)
	}

	ch, err := loader.Load(chartPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart %s: %w", chartPath, err)
	}
	return ch, nil
}

// ReleaseExists reports whether the release has any history.
func (c *Client) ReleaseExists(name string) (bool, error) {
	hist := action.NewHistory(c.cfg)
	hist.Max = 1
	if _, err := hist.Run(name); err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read release history: %w", err)
	}
	return true, nil
}

// InstallOrUpgrade installs the release, or upgrades it when it already
// exists. Workload readiness is not awaited here.
func (c *Client) InstallOrUpgrade(ctx context.Context, ch *chart.Chart, inv *Invocation, timeout time.Duration) (*release.Release, error) {
	values, err := inv.Values()
	if err != nil {
		return nil, err
	}

	exists, err := c.ReleaseExists(inv.ReleaseName)
	if err != nil {
		return nil, err
	}

	if exists {
		upgrade := action.NewUpgrade(c.cfg)
		upgrade.Namespace = c.namespace
		upgrade.Timeout = timeout
		upgrade.ResetValues = true

		rel, err := upgrade.RunWithContext(ctx, inv.ReleaseName, ch, values)
		if err != nil {
			return nil, fmt.Errorf("helm upgrade failed: %w", err)
		}
		return rel, nil
	}

	install := action.NewInstall(c.cfg)
	install.ReleaseName = inv.ReleaseName
	install.Namespace = c.namespace
	install.CreateNamespace = true
	install.Timeout = timeout

	rel, err := install.RunWithContext(ctx, ch, values)
	if err != nil {
		return nil, fmt.Errorf("helm install failed: %w", err)
	}
	return rel, nil
}

// Status returns the current state of the release. found is false when the
// release does not exist.
func (c *Client) Status(name string) (status *ReleaseStatus, found bool, err error) {
	rel, err := action.NewStatus(c.cfg).Run(name)
	if err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read release status: %w", err)
	}

	status = &ReleaseStatus{
		Name:      rel.Name,
		Namespace: rel.Namespace,
		Revision:  rel.Version,
	}
	if rel.Info != nil {
		status.Status = rel.Info.Status.String()
		status.Updated = rel.Info.LastDeployed.Time
	}
	if rel.Chart != nil && rel.Chart.Metadata != nil {
		status.ChartVersion = rel.Chart.Metadata.Version
		status.AppVersion = rel.Chart.Metadata.AppVersion
	}
	return status, true, nil
}

// Uninstall removes the release. A missing release is not an error;
// removed reports whether anything was uninstalled.
func (c *Client) Uninstall(name string, timeout time.Duration) (removed bool, err error) {
	exists, err := c.ReleaseExists(name)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	uninstall := action.NewUninstall(c.cfg)
	uninstall.Wait = true
	uninstall.Timeout = timeout

	if _, err := uninstall.Run(name); err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("helm uninstall failed: %w", err)
	}
	return true, nil
}
