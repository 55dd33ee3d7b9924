package resolver

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/outcome"
	"github.com/cost-onprem/installer/internal/probe"
)

// CredentialSource says who owns the object storage credentials.
type CredentialSource string

const (
	// CredentialsUserManaged means the caller supplied an existing secret.
	CredentialsUserManaged CredentialSource = "user-managed"
	// CredentialsExternalClaim means a bucket claim published the credentials.
	CredentialsExternalClaim CredentialSource = "external-claim"
	// CredentialsGenerated means the installer creates the credential secret.
	CredentialsGenerated CredentialSource = "generated"
)

// Strategy names the storage backend resolution strategy that matched.
type Strategy string

// Storage strategies in precedence order.
const (
	StrategyUserDeclared  Strategy = "user-declared"
	StrategyExternalClaim Strategy = "external-claim"
	StrategyDevProxy      Strategy = "development-proxy"
	StrategyOperator      Strategy = "auto-detected-operator"
	StrategyFallback      Strategy = "fallback"
)

const (
	// ClaimName is the conventional name of the bucket claim, its config map
	// and its secret.
	ClaimName = "ros-data-ceph"

	// OperatorEndpoint is the in-cluster S3 service of the storage operator.
	OperatorEndpoint = "s3.openshift-storage.svc"

	// PlaceholderEndpoint is the chart's baked-in endpoint, used only so that
	// manifests can be rendered offline.
	PlaceholderEndpoint = "minio.placeholder.invalid"

	httpPort  = 80
	httpsPort = 443

	claimBoundPhase = "Bound"
)

// LogicalBuckets is the fixed list of buckets the application uses.
var LogicalBuckets = []string{"koku-bucket", "ros-data", "insights-upload-perma", "koku-report"}

// Storage is the normalized object storage configuration.
type Storage struct {
	Strategy           Strategy
	Endpoint           string
	Port               int
	UseTLS             bool
	Region             string
	CredentialSource   CredentialSource
	ExistingSecretName string

	// Buckets maps each logical bucket to its physical name. A claim owns a
	// single bucket, so every logical bucket maps onto it.
	Buckets map[string]string

	// Warnings are advisory messages produced while resolving.
	Warnings []string
}

// ManagesCredentials reports whether the installer may write the storage
// credential secret.
func (s *Storage) ManagesCredentials() bool {
	return s.CredentialSource == CredentialsGenerated && s.Strategy != StrategyFallback
}

// ProvisionsBuckets reports whether bucket creation applies to this backend.
func (s *Storage) ProvisionsBuckets() bool {
	return s.CredentialSource != CredentialsExternalClaim && s.Strategy != StrategyFallback
}

// BucketNames returns the distinct physical bucket names in logical order.
func (s *Storage) BucketNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, logical := range LogicalBuckets {
		name := s.Buckets[logical]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// URL returns the endpoint as an http(s) URL.
func (s *Storage) URL() string {
	scheme := "http"
	if s.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.Endpoint, strconv.Itoa(s.Port)))
}

// StorageInput is everything the storage resolver looks at.
type StorageInput struct {
	Namespace string
	Values    config.ValuesDocument
	Env       config.StorageOverrides

	// RequireStorage turns the offline fallback into a fatal failure.
	RequireStorage bool
}

// StorageResolver applies the storage precedence chain.
type StorageResolver struct {
	client *kube.Client
}

// NewStorageResolver creates a StorageResolver.
func NewStorageResolver(client *kube.Client) *StorageResolver {
	return &StorageResolver{client: client}
}

// Resolve returns exactly one storage configuration. Strategies are tried in
// precedence order and the first match wins. A detected but malformed
// user declaration or claim is fatal and never falls through.
func (r *StorageResolver) Resolve(ctx context.Context, in StorageInput) (*Storage, error) {
	if s, ok, err := r.userDeclared(ctx, in); ok || err != nil {
		return s, err
	}
	if s, ok, err := r.externalClaim(ctx, in.Namespace); ok || err != nil {
		return s, err
	}
	if s, ok := devProxy(in.Env.ProxyEndpoint); ok {
		return s, nil
	}
	if s, ok, err := r.operator(ctx); ok || err != nil {
		return s, err
	}
	return fallback(in)
}

func (r *StorageResolver) userDeclared(ctx context.Context, in StorageInput) (*Storage, bool, error) {
	fail := func(err error, missing, remediation string) (*Storage, bool, error) {
		return nil, true, outcome.Fatal(err,
			outcome.WithStrategy(string(StrategyUserDeclared)),
			outcome.WithMissing(missing),
			outcome.WithRemediation(remediation))
	}

	endpoint := in.Values.String("storage.endpoint")
	if in.Env.Declared() {
		endpoint = in.Env.Endpoint
	}
	if endpoint == "" {
		return nil, false, nil
	}

	host, scheme, port, err := splitEndpoint(endpoint)
	if err != nil {
		return fail(err, "storage.endpoint", "set storage.endpoint to host, host:port or an http(s) URL")
	}

	useTLS := scheme != "http"
	if raw := firstNonEmpty(in.Env.UseSSL, in.Values.String("storage.useTLS")); raw != "" {
		useTLS, err = strconv.ParseBool(raw)
		if err != nil {
			return fail(fmt.Errorf("invalid TLS flag %q: %w", raw, err), "storage.useTLS", "set storage.useTLS (or S3_USE_SSL) to true or false")
		}
	}

	if raw := firstNonEmpty(in.Env.Port, in.Values.String("storage.port")); raw != "" {
		port, err = parsePort(raw)
		if err != nil {
			return fail(err, "storage.port", "set storage.port (or S3_PORT) to a number between 1 and 65535")
		}
	}
	if port == 0 {
		port = defaultPort(useTLS)
	}

	s := &Storage{
		Strategy:         StrategyUserDeclared,
		Endpoint:         host,
		Port:             port,
		UseTLS:           useTLS,
		Region:           firstNonEmpty(in.Env.Region, in.Values.String("storage.region")),
		CredentialSource: CredentialsGenerated,
		Buckets:          identityBuckets(),
	}

	if secretName := in.Values.String("storage.existingSecret"); secretName != "" {
		_, found, err := r.client.GetSecret(ctx, in.Namespace, secretName)
		if err != nil {
			return fail(err, "secret "+secretName, "")
		}
		if !found {
			return fail(fmt.Errorf("storage.existingSecret names a secret that does not exist"),
				fmt.Sprintf("secret %s/%s", in.Namespace, secretName),
				fmt.Sprintf("kubectl create secret generic %s -n %s --from-literal=access-key=<key> --from-literal=secret-key=<secret>", secretName, in.Namespace))
		}
		s.CredentialSource = CredentialsUserManaged
		s.ExistingSecretName = secretName
	}

	return s, true, nil
}

func (r *StorageResolver) externalClaim(ctx context.Context, namespace string) (*Storage, bool, error) {
	claim, found, err := r.client.GetResource(ctx, kube.ObjectBucketClaimGVR, namespace, ClaimName)
	if err != nil {
		return nil, true, outcome.Fatal(err, outcome.WithStrategy(string(StrategyExternalClaim)))
	}
	if !found {
		return nil, false, nil
	}

	fail := func(err error, missing string) (*Storage, bool, error) {
		return nil, true, outcome.Fatal(err,
			outcome.WithStrategy(string(StrategyExternalClaim)),
			outcome.WithMissing(missing),
			outcome.WithRemediation(fmt.Sprintf("kubectl describe objectbucketclaim %s -n %s", ClaimName, namespace)))
	}

	phase, _, _ := unstructured.NestedString(claim.Object, "status", "phase")
	if phase != claimBoundPhase {
		return fail(fmt.Errorf("bucket claim %s is %q, not %s", ClaimName, phase, claimBoundPhase),
			"ObjectBucketClaim "+ClaimName+" status.phase=Bound")
	}

	cm, found, err := r.client.GetConfigMap(ctx, namespace, ClaimName)
	if err != nil {
		return fail(err, "configmap "+ClaimName)
	}
	if !found {
		return fail(fmt.Errorf("bound claim has no connection config map"), "configmap "+ClaimName)
	}

	host := cm.Data["BUCKET_HOST"]
	bucket := cm.Data["BUCKET_NAME"]
	if host == "" || bucket == "" {
		return fail(fmt.Errorf("claim config map is incomplete"), "configmap "+ClaimName+" BUCKET_HOST/BUCKET_NAME")
	}
	port, err := parsePort(cm.Data["BUCKET_PORT"])
	if err != nil {
		return fail(err, "configmap "+ClaimName+" BUCKET_PORT")
	}

	secret, found, err := r.client.GetSecret(ctx, namespace, ClaimName)
	if err != nil {
		return fail(err, "secret "+ClaimName)
	}
	if !found || len(secret.Data["AWS_ACCESS_KEY_ID"]) == 0 || len(secret.Data["AWS_SECRET_ACCESS_KEY"]) == 0 {
		return fail(fmt.Errorf("claim credentials are unreadable"), "secret "+ClaimName+" AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY")
	}

	buckets := make(map[string]string, len(LogicalBuckets))
	for _, logical := range LogicalBuckets {
		buckets[logical] = bucket
	}

	return &Storage{
		Strategy:           StrategyExternalClaim,
		Endpoint:           host,
		Port:               port,
		UseTLS:             port == httpsPort,
		Region:             cm.Data["BUCKET_REGION"],
		CredentialSource:   CredentialsExternalClaim,
		ExistingSecretName: ClaimName,
		Buckets:            buckets,
	}, true, nil
}

func devProxy(address string) (*Storage, bool) {
	if address == "" {
		return nil, false
	}

	host := address
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimSuffix(host, "/")

	var warnings []string
	if h, p, err := net.SplitHostPort(host); err == nil {
		host = h
		if p != strconv.Itoa(httpPort) {
			warnings = append(warnings, fmt.Sprintf("development proxy port %s ignored; the proxy is always reached on port %d", p, httpPort))
		}
	}

	return &Storage{
		Strategy:         StrategyDevProxy,
		Endpoint:         host,
		Port:             httpPort,
		UseTLS:           false,
		CredentialSource: CredentialsGenerated,
		Buckets:          identityBuckets(),
		Warnings:         warnings,
	}, true
}

func (r *StorageResolver) operator(ctx context.Context) (*Storage, bool, error) {
	_, found, err := r.client.GetSecret(ctx, probe.StorageOperatorNamespace, probe.StorageOperatorAdminSecret)
	if err != nil {
		// An unreadable operator namespace counts as not detected.
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}

	return &Storage{
		Strategy:         StrategyOperator,
		Endpoint:         OperatorEndpoint,
		Port:             httpsPort,
		UseTLS:           true,
		CredentialSource: CredentialsGenerated,
		Buckets:          identityBuckets(),
	}, true, nil
}

func fallback(in StorageInput) (*Storage, error) {
	msg := "no object storage backend detected; manifests will render with the placeholder endpoint but storage connectivity will fail"
	if in.RequireStorage {
		return nil, outcome.Fatal(fmt.Errorf("no object storage backend detected"),
			outcome.WithStrategy(string(StrategyFallback)),
			outcome.WithMissing("storage.endpoint, ObjectBucketClaim "+ClaimName+", STORAGE_PROXY_ENDPOINT or "+probe.StorageOperatorNamespace+"/"+probe.StorageOperatorAdminSecret),
			outcome.WithRemediation("set storage.endpoint in the values file or S3_ENDPOINT, or unset REQUIRE_STORAGE for offline rendering"))
	}
	return &Storage{
		Strategy:         StrategyFallback,
		Endpoint:         PlaceholderEndpoint,
		Port:             httpPort,
		CredentialSource: CredentialsGenerated,
		Buckets:          identityBuckets(),
		Warnings:         []string{msg},
	}, nil
}

// splitEndpoint accepts "host", "host:port" or "scheme://host[:port]".
func splitEndpoint(endpoint string) (host, scheme string, port int, err error) {
	if strings.Contains(endpoint, "://") {
		u, perr := url.Parse(endpoint)
		if perr != nil {
			return "", "", 0, fmt.Errorf("invalid storage endpoint %q: %w", endpoint, perr)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", "", 0, fmt.Errorf("invalid storage endpoint scheme %q", u.Scheme)
		}
		scheme = u.Scheme
		endpoint = u.Host
	}

	host = endpoint
	if h, p, serr := net.SplitHostPort(endpoint); serr == nil {
		host = h
		port, err = parsePort(p)
		if err != nil {
			return "", "", 0, err
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("invalid storage endpoint %q: empty host", endpoint)
	}
	return host, scheme, port, nil
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	return port, nil
}

func defaultPort(useTLS bool) int {
	if useTLS {
		return httpsPort
	}
	return httpPort
}

func identityBuckets() map[string]string {
	m := make(map[string]string, len(LogicalBuckets))
	for _, b := range LogicalBuckets {
		m[b] = b
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
