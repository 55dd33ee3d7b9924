package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Defaults for the installation identity and chart location.
const (
	DefaultNamespace      = "cost-onprem"
	DefaultReleaseName    = "cost-onprem"
	DefaultChartName      = "cost-onprem"
	DefaultLocalChartPath = "./cost-onprem"
	DefaultChartRepoURL   = "https://project-koku.github.io/cost-onprem-chart"
)

// Bucket execution modes.
const (
	BucketExecAuto   = "auto"
	BucketExecJob    = "job"
	BucketExecDirect = "direct"
)

// ChartSource describes where the chart is loaded from.
type ChartSource struct {
	UseLocal  bool
	LocalPath string
	RepoURL   string
	Name      string
	Version   string
}

// StorageOverrides holds object storage settings supplied through the
// environment. Port and UseSSL stay raw so the resolver can reject malformed
// values instead of silently defaulting them.
type StorageOverrides struct {
	Endpoint      string
	Port          string
	UseSSL        string
	Region        string
	AccessKey     string
	SecretKey     string
	ProxyEndpoint string
}

// Declared reports whether any user-declared storage field is set.
func (s StorageOverrides) Declared() bool {
	return s.Endpoint != ""
}

// Settings is the complete configuration surface of one installer run.
// It is read once from the environment and then adjusted by CLI flags.
type Settings struct {
	Namespace   string
	ReleaseName string
	ValuesFile  string
	Kubeconfig  string
	Chart       ChartSource

	// SetOverrides are pass-through key=value overrides appended after the
	// resolved values, in the order given.
	SetOverrides []string

	Storage StorageOverrides

	BrokerBootstrap        string
	BrokerSecurityProtocol string

	KeycloakNamespace string
	KeycloakURL       string

	ClusterDomain string
	StorageClass  string

	SkipStorageSetup bool
	SkipBucketSetup  bool
	RequireStorage   bool
	BucketExecMode   string

	MetricsTextfile string
	CacheDir        string

	Timeouts *Timeouts
}

// LoadSettings reads the installer configuration from environment variables.
//
// Environment Variables:
//   - NAMESPACE, HELM_RELEASE_NAME, VALUES_FILE, KUBECONFIG
//   - USE_LOCAL_CHART, LOCAL_CHART_PATH, CHART_REPO_URL, CHART_NAME, CHART_VERSION
//   - S3_ENDPOINT, S3_PORT, S3_USE_SSL, S3_REGION, S3_ACCESS_KEY, S3_SECRET_KEY
//   - STORAGE_PROXY_ENDPOINT
//   - KAFKA_BOOTSTRAP_SERVERS, KAFKA_SECURITY_PROTOCOL
//   - KEYCLOAK_NAMESPACE, KEYCLOAK_URL
//   - CLUSTER_DOMAIN, STORAGE_CLASS
//   - SKIP_S3_SETUP, SKIP_BUCKET_SETUP, REQUIRE_STORAGE, BUCKET_EXEC_MODE
//   - METRICS_TEXTFILE, COST_ONPREM_CACHE_DIR
func LoadSettings() *Settings {
	return &Settings{
		Namespace:   envOr("NAMESPACE", DefaultNamespace),
		ReleaseName: envOr("HELM_RELEASE_NAME", DefaultReleaseName),
		ValuesFile:  os.Getenv("VALUES_FILE"),
		Kubeconfig:  os.Getenv("KUBECONFIG"),
		Chart: ChartSource{
			UseLocal:  parseBool("USE_LOCAL_CHART", false),
			LocalPath: envOr("LOCAL_CHART_PATH", DefaultLocalChartPath),
			RepoURL:   envOr("CHART_REPO_URL", DefaultChartRepoURL),
			Name:      envOr("CHART_NAME", DefaultChartName),
			Version:   os.Getenv("CHART_VERSION"),
		},
		Storage: StorageOverrides{
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			Port:          os.Getenv("S3_PORT"),
			UseSSL:        os.Getenv("S3_USE_SSL"),
			Region:        os.Getenv("S3_REGION"),
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			ProxyEndpoint: os.Getenv("STORAGE_PROXY_ENDPOINT"),
		},
		BrokerBootstrap:        os.Getenv("KAFKA_BOOTSTRAP_SERVERS"),
		BrokerSecurityProtocol: os.Getenv("KAFKA_SECURITY_PROTOCOL"),
		KeycloakNamespace:      os.Getenv("KEYCLOAK_NAMESPACE"),
		KeycloakURL:            os.Getenv("KEYCLOAK_URL"),
		ClusterDomain:          os.Getenv("CLUSTER_DOMAIN"),
		StorageClass:           os.Getenv("STORAGE_CLASS"),
		SkipStorageSetup:       parseBool("SKIP_S3_SETUP", false),
		SkipBucketSetup:        parseBool("SKIP_BUCKET_SETUP", false),
		RequireStorage:         parseBool("REQUIRE_STORAGE", false),
		BucketExecMode:         strings.ToLower(envOr("BUCKET_EXEC_MODE", BucketExecAuto)),
		MetricsTextfile:        os.Getenv("METRICS_TEXTFILE"),
		CacheDir:               envOr("COST_ONPREM_CACHE_DIR", defaultCacheDir()),
		Timeouts:               LoadTimeouts(),
	}
}

// Validate checks the settings for values that cannot work.
func (s *Settings) Validate() error {
	if s.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if s.ReleaseName == "" {
		return fmt.Errorf("release name is required")
	}
	switch s.BucketExecMode {
	case BucketExecAuto, BucketExecJob, BucketExecDirect:
	default:
		return fmt.Errorf("invalid BUCKET_EXEC_MODE %q (expected auto, job or direct)", s.BucketExecMode)
	}
	if s.Chart.UseLocal && s.Chart.LocalPath == "" {
		return fmt.Errorf("LOCAL_CHART_PATH is required when USE_LOCAL_CHART=true")
	}
	if !s.Chart.UseLocal && (s.Chart.RepoURL == "" || s.Chart.Name == "") {
		return fmt.Errorf("CHART_REPO_URL and CHART_NAME are required for remote charts")
	}
	for _, kv := range s.SetOverrides {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("invalid --set override %q (expected key=value)", kv)
		}
	}
	return nil
}

// defaultCacheDir returns the per-user cache directory for the installer.
func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "cost-onprem")
	}
	return filepath.Join(dir, "cost-onprem")
}
