package handlers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/release"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/health"
	"github.com/cost-onprem/installer/internal/helm"
	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/kube/kubetest"
	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/probe"
)

type fakeDeployer struct {
	installs   int
	uninstalls []string
	status     *helm.ReleaseStatus
}

func (d *fakeDeployer) LoadChart(_ config.ChartSource) (*chart.Chart, error) {
	return &chart.Chart{
		Metadata: &chart.Metadata{APIVersion: "v2", Name: "cost-onprem", Version: "0.1.0"},
		Templates: []*chart.File{{
			Name: "templates/ns.yaml",
			Data: []byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: {{ .Release.Name }}\n  namespace: {{ .Release.Namespace }}\n"),
		}},
	}, nil
}

func (d *fakeDeployer) InstallOrUpgrade(_ context.Context, _ *chart.Chart, inv *helm.Invocation, _ time.Duration) (*release.Release, error) {
	d.installs++
	return &release.Release{Name: inv.ReleaseName, Version: d.installs, Info: &release.Info{Status: release.StatusDeployed}}, nil
}

func (d *fakeDeployer) Status(_ string) (*helm.ReleaseStatus, bool, error) {
	return d.status, d.status != nil, nil
}

func (d *fakeDeployer) Uninstall(name string, _ time.Duration) (bool, error) {
	d.uninstalls = append(d.uninstalls, name)
	return true, nil
}

// withFakes swaps the factories and output writers for the test.
func withFakes(t *testing.T, typed ...runtime.Object) (*kubetest.Cluster, *fakeDeployer, *bytes.Buffer) {
	t.Helper()
	cluster := kubetest.NewCluster(typed)
	d := &fakeDeployer{}
	var out bytes.Buffer

	origKube, origDeployer, origStdout, origStderr := newKubeClient, newDeployer, stdout, stderr
	t.Cleanup(func() {
		newKubeClient, newDeployer, stdout, stderr = origKube, origDeployer, origStdout, origStderr
	})

	newKubeClient = func(string) (*kube.Client, error) { return cluster.Client, nil }
	newDeployer = func(*kube.Client, *config.Settings, string, logr.Logger) (deployer, error) { return d, nil }
	stdout = &out
	stderr = &bytes.Buffer{}

	t.Setenv("COST_ONPREM_CACHE_DIR", t.TempDir())
	return cluster, d, &out
}

func TestApplyFlags(t *testing.T) {
	settings := &config.Settings{Namespace: "from-env", ReleaseName: "env-release", Kubeconfig: "/env/kubeconfig"}

	applyFlags(settings, Flags{Namespace: "from-flag", ValuesFile: "values.yaml"})

	assert.Equal(t, "from-flag", settings.Namespace)
	assert.Equal(t, "env-release", settings.ReleaseName)
	assert.Equal(t, "values.yaml", settings.ValuesFile)
	assert.Equal(t, "/env/kubeconfig", settings.Kubeconfig)
}

func TestLoadSettings_ValuesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  endpoint: s3.example.com\n"), 0o600))
	t.Setenv("NAMESPACE", "env-ns")

	settings, values, err := loadSettings(Flags{ValuesFile: path})

	require.NoError(t, err)
	assert.Equal(t, "env-ns", settings.Namespace)
	assert.Equal(t, "s3.example.com", values.String("storage.endpoint"))
}

func TestLoadSettings_MissingValuesFile(t *testing.T) {
	_, _, err := loadSettings(Flags{ValuesFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestInstall_DryRun(t *testing.T) {
	cluster, d, out := withFakes(t)
	t.Setenv("S3_ENDPOINT", "https://s3.example.com")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "kafka:9092")

	err := Install(context.Background(), Flags{Namespace: "cost-mgmt"}, InstallOptions{DryRun: true})

	require.NoError(t, err)
	assert.Zero(t, d.installs)
	assert.Empty(t, cluster.Writes("secrets"))
	assert.Contains(t, out.String(), "namespace: cost-mgmt")
}

func TestInstall_BrokerMissing(t *testing.T) {
	_, d, _ := withFakes(t)
	t.Setenv("S3_ENDPOINT", "https://s3.example.com")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "")
	errOut := &bytes.Buffer{}
	stderr = errOut

	err := Install(context.Background(), Flags{}, InstallOptions{})

	require.Error(t, err)
	assert.Zero(t, d.installs)
	assert.Contains(t, errOut.String(), "resolve-broker")
	assert.Contains(t, errOut.String(), "KAFKA_BOOTSTRAP_SERVERS")
}

func TestCleanup_Complete(t *testing.T) {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "cost-onprem"}}
	t.Setenv("COST_ONPREM_TIMEOUT_DELETE", "5s")
	cluster, d, out := withFakes(t, ns)

	err := Cleanup(context.Background(), Flags{}, CleanupOptions{Complete: true, Yes: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"cost-onprem"}, d.uninstalls)
	_, found, err := cluster.Client.GetNamespace(context.Background(), "cost-onprem")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Contains(t, out.String(), "removed")
}

func TestPrintFailure(t *testing.T) {
	var buf bytes.Buffer
	err := outcome.Fatal(errors.New("no Kafka cluster found"),
		outcome.WithStage("resolve-broker"),
		outcome.WithStrategy("discovery"),
		outcome.WithMissing("Kafka resource"),
		outcome.WithRemediation("export KAFKA_BOOTSTRAP_SERVERS=<host>:<port>"))

	printFailure(&buf, err)

	out := buf.String()
	assert.Contains(t, out, "Stage:")
	assert.Contains(t, out, "resolve-broker")
	assert.Contains(t, out, "discovery")
	assert.Contains(t, out, "Kafka resource")
	assert.Contains(t, out, "export KAFKA_BOOTSTRAP_SERVERS")
}

func TestPrintFailure_PlainError(t *testing.T) {
	var buf bytes.Buffer
	printFailure(&buf, errors.New("boom"))
	assert.Empty(t, buf.String())
}

func TestPrintStatus_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	require.False(t, p.styled)

	printStatus(p, statusView{
		Namespace: "cost-onprem",
		Release:   "cost-onprem",
		Found:     true,
		Status:    &helm.ReleaseStatus{Name: "cost-onprem", Revision: 3, Status: "deployed", ChartVersion: "0.2.1"},
		Platform:  probe.PlatformOpenShift,
		Facts:     &probe.Facts{ServerVersion: "v1.31.4", ClusterDomain: "apps.example.com", BrokerPresent: true},
		Workloads: []kube.WorkloadStatus{
			{Kind: "Deployment", Name: "koku-api", Desired: 2, Ready: 2},
			{Kind: "StatefulSet", Name: "postgres", Desired: 1, Ready: 0},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Revision:")
	assert.Contains(t, out, "deployed")
	assert.Contains(t, out, "✓ Deployment/koku-api  2/2 ready")
	assert.Contains(t, out, "✗ StatefulSet/postgres  0/1 ready")
	assert.Contains(t, out, "apps.example.com")
	assert.NotContains(t, out, "\x1b[")
}

func TestPrintStatus_NotInstalled(t *testing.T) {
	var buf bytes.Buffer

	printStatus(newPrinter(&buf), statusView{Namespace: "cost-onprem", Release: "cost-onprem", Platform: probe.PlatformKubernetes})

	assert.Contains(t, buf.String(), "not installed in cost-onprem")
	assert.Contains(t, buf.String(), "no workloads labelled for the release")
}

func TestPrintHealth(t *testing.T) {
	var buf bytes.Buffer

	printHealth(newPrinter(&buf), "cost-onprem", &health.Report{Checks: []health.Check{
		{Name: health.CheckPods, Passed: true, Detail: "4/4 pods ready"},
		{Name: health.CheckExternal, External: true, Detail: "unreachable"},
	}})

	assert.Contains(t, buf.String(), "✓ pods  4/4 pods ready")
	assert.Contains(t, buf.String(), "! external-route (informational)  unreachable")
}
