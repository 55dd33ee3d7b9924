// Package handlers implements the business logic for CLI commands.
//
// Each handler loads the settings, builds the cluster clients and runs the
// corresponding provisioning phases. Results are printed for humans: styled
// when stdout is a terminal, plain otherwise.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/helm"
	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/provisioning"
)

// Flags are the persistent flags shared by every command. Non-empty values
// override the environment.
type Flags struct {
	Namespace   string
	ReleaseName string
	ValuesFile  string
	Kubeconfig  string
	Verbose     bool
}

// Factory function variables, replaced in tests.
var (
	newKubeClient = kube.New

	newDeployer = func(kc *kube.Client, settings *config.Settings, workDir string, log logr.Logger) (deployer, error) {
		return helm.NewClient(kc, settings.Kubeconfig, settings.Namespace, workDir, log)
	}

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// deployer is the part of *helm.Client the handlers use.
type deployer interface {
	provisioning.Deployer
	Status(name string) (*helm.ReleaseStatus, bool, error)
	Uninstall(name string, timeout time.Duration) (bool, error)
}

// loadSettings reads the environment, applies the flags and loads the values
// document.
func loadSettings(flags Flags) (*config.Settings, config.ValuesDocument, error) {
	settings := config.LoadSettings()
	applyFlags(settings, flags)

	values := config.ValuesDocument{}
	if settings.ValuesFile != "" {
		var err error
		values, err = config.LoadValuesDocument(settings.ValuesFile)
		if err != nil {
			return nil, nil, err
		}
	}
	return settings, values, nil
}

func applyFlags(settings *config.Settings, flags Flags) {
	if flags.Namespace != "" {
		settings.Namespace = flags.Namespace
	}
	if flags.ReleaseName != "" {
		settings.ReleaseName = flags.ReleaseName
	}
	if flags.ValuesFile != "" {
		settings.ValuesFile = flags.ValuesFile
	}
	if flags.Kubeconfig != "" {
		settings.Kubeconfig = flags.Kubeconfig
	}
}

// session holds the clients of one command run.
type session struct {
	settings *config.Settings
	values   config.ValuesDocument
	kube     *kube.Client
	deployer deployer
	log      logr.Logger
	observer provisioning.Observer

	cleanup func()
}

// openSession builds the clients. The chart work directory is removed by
// cleanup, which callers must defer.
func openSession(flags Flags) (*session, error) {
	settings, values, err := loadSettings(flags)
	if err != nil {
		return nil, err
	}

	kc, err := newKubeClient(settings.Kubeconfig)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "cost-onprem-chart-")
	if err != nil {
		return nil, fmt.Errorf("failed to create chart work directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(workDir) }

	log := provisioning.NewLogger(stderr, flags.Verbose)
	d, err := newDeployer(kc, settings, workDir, log)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &session{
		settings: settings,
		values:   values,
		kube:     kc,
		deployer: d,
		log:      log,
		observer: provisioning.NewLogrObserver(log),
		cleanup:  cleanup,
	}, nil
}

// runPhases runs phases as one pipeline and writes the run metrics.
func (s *session) runPhases(pctx *provisioning.Context, phases ...provisioning.Phase) error {
	pipeline := provisioning.NewPipeline(phases...)
	pipeline.Metrics = provisioning.NewRunMetrics(s.settings.ReleaseName)

	err := pipeline.Run(pctx)
	if werr := pipeline.Metrics.WriteTextfile(s.settings.MetricsTextfile); werr != nil {
		s.log.Error(werr, "Run metrics not written")
	}
	return err
}

func (s *session) newContext(ctx context.Context) *provisioning.Context {
	return provisioning.NewContext(ctx, s.settings, s.values, s.observer)
}
