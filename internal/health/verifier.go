// Package health verifies a deployed release.
//
// In-cluster checks (pod readiness and the application status endpoint
// reached through a scoped port-forward) decide whether the release is
// healthy. The external check through the route or ingress only reports:
// the operator's host often cannot reach the cluster's ingress.
package health

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cost-onprem/installer/internal/kube"
	"github.com/cost-onprem/installer/internal/probe"
	"github.com/cost-onprem/installer/internal/util/retry"
)

const (
	// APIServiceSuffix names the read API service: <release>-koku-api-reads.
	APIServiceSuffix = "-koku-api-reads"
	// APIPort is the container port of the read API.
	APIPort = 8000
	// StatusPath is the application status endpoint.
	StatusPath = "/api/cost-management/v1/status/"
	// ExternalSuffix names the route or ingress: <release>-api.
	ExternalSuffix = "-api"
)

// Check names.
const (
	CheckPods     = "pods"
	CheckAPI      = "api-status"
	CheckExternal = "external-route"
)

// Check is the result of one health check.
type Check struct {
	Name   string
	Passed bool
	// External checks never make the release unhealthy.
	External bool
	Detail   string
}

// Report collects the results of a verification run.
type Report struct {
	Checks []Check
}

// Healthy reports whether every in-cluster check passed.
func (r *Report) Healthy() bool {
	return len(r.failed()) == 0
}

// Err returns an error naming the failed in-cluster checks, or nil.
func (r *Report) Err() error {
	failed := r.failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("health checks failed: %s", strings.Join(failed, ", "))
}

func (r *Report) failed() []string {
	var names []string
	for _, c := range r.Checks {
		if !c.Passed && !c.External {
			names = append(names, c.Name)
		}
	}
	return names
}

// Options configures a Verifier.
type Options struct {
	Namespace string
	Release   string
	Platform  probe.Platform

	// Timeout bounds a single HTTP probe.
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration

	// CABundle is trusted for the external check in addition to the
	// system roots.
	CABundle []byte
}

// Verifier runs the health checks of one release.
type Verifier struct {
	client    *kube.Client
	forwarder Forwarder
	opts      Options

	HTTPClient *http.Client
}

// NewVerifier creates a Verifier.
func NewVerifier(client *kube.Client, forwarder Forwarder, opts Options) *Verifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Verifier{
		client:     client,
		forwarder:  forwarder,
		opts:       opts,
		HTTPClient: newHTTPClient(opts.CABundle),
	}
}

// Verify runs all checks. Failures are recorded in the report, never
// returned.
func (v *Verifier) Verify(ctx context.Context) *Report {
	return &Report{Checks: []Check{
		v.checkPods(ctx),
		v.checkAPI(ctx),
		v.checkExternal(ctx),
	}}
}

func (v *Verifier) checkPods(ctx context.Context) Check {
	check := Check{Name: CheckPods}

	pods, err := v.client.ListPods(ctx, v.opts.Namespace, kube.ReleaseSelector(v.opts.Release))
	if err != nil {
		check.Detail = err.Error()
		return check
	}

	var total, ready int
	var notReady []string
	for i := range pods {
		// Completed job pods are not part of the serving set.
		if pods[i].Status.Phase == corev1.PodSucceeded {
			continue
		}
		total++
		if kube.IsPodReady(&pods[i]) {
			ready++
		} else {
			notReady = append(notReady, pods[i].Name)
		}
	}

	switch {
	case total == 0:
		check.Detail = "no pods found for release " + v.opts.Release
	case len(notReady) > 0:
		check.Detail = fmt.Sprintf("%d/%d pods ready, not ready: %s", ready, total, strings.Join(notReady, ", "))
	default:
		check.Passed = true
		check.Detail = fmt.Sprintf("%d/%d pods ready", ready, total)
	}
	return check
}

func (v *Verifier) checkAPI(ctx context.Context) Check {
	check := Check{Name: CheckAPI}
	service := v.opts.Release + APIServiceSuffix

	pod, err := v.client.ReadyPodForService(ctx, v.opts.Namespace, service)
	if err != nil {
		check.Detail = err.Error()
		return check
	}

	localPort, stop, err := v.forwarder.Forward(ctx, v.opts.Namespace, pod, APIPort)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	defer stop()

	url := fmt.Sprintf("http://127.0.0.1:%d%s", localPort, StatusPath)
	if err := v.probe(ctx, url); err != nil {
		check.Detail = err.Error()
		return check
	}

	check.Passed = true
	check.Detail = fmt.Sprintf("%s via pod %s", StatusPath, pod)
	return check
}

func (v *Verifier) checkExternal(ctx context.Context) Check {
	check := Check{Name: CheckExternal, External: true}

	base, err := v.externalURL(ctx)
	if err != nil {
		check.Detail = err.Error()
		return check
	}

	url := base + StatusPath
	if err := v.probe(ctx, url); err != nil {
		check.Detail = fmt.Sprintf("%s unreachable: %v", url, err)
		return check
	}

	check.Passed = true
	check.Detail = url
	return check
}

// externalURL returns the scheme and host of the release's route on
// OpenShift, or of its ingress elsewhere.
func (v *Verifier) externalURL(ctx context.Context) (string, error) {
	name := v.opts.Release + ExternalSuffix

	if v.opts.Platform == probe.PlatformOpenShift {
		route, found, err := v.client.GetResource(ctx, kube.RouteGVR, v.opts.Namespace, name)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("route %s/%s not found", v.opts.Namespace, name)
		}
		host, _, _ := unstructured.NestedString(route.Object, "spec", "host")
		if host == "" {
			return "", fmt.Errorf("route %s/%s has no host", v.opts.Namespace, name)
		}
		scheme := "http"
		if _, ok, _ := unstructured.NestedMap(route.Object, "spec", "tls"); ok {
			scheme = "https"
		}
		return scheme + "://" + host, nil
	}

	ing, err := v.client.Clientset().NetworkingV1().Ingresses(v.opts.Namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if kube.IsAbsent(err) {
			return "", fmt.Errorf("ingress %s/%s not found", v.opts.Namespace, name)
		}
		return "", fmt.Errorf("failed to get ingress %s/%s: %w", v.opts.Namespace, name, err)
	}
	for _, rule := range ing.Spec.Rules {
		if rule.Host == "" {
			continue
		}
		scheme := "http"
		if len(ing.Spec.TLS) > 0 {
			scheme = "https"
		}
		return scheme + "://" + rule.Host, nil
	}
	return "", fmt.Errorf("ingress %s/%s has no host", v.opts.Namespace, name)
}

// probe GETs url until it answers 2xx. Server errors and connection failures
// are retried; other status codes are final.
func (v *Verifier) probe(ctx context.Context, url string) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Fatal(err)
		}
		resp, err := v.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		default:
			return retry.Fatal(fmt.Errorf("status %d", resp.StatusCode))
		}
	}, retry.WithAttempts(v.opts.Attempts), retry.WithInitialDelay(v.retryDelay()))
}

func (v *Verifier) retryDelay() time.Duration {
	if v.opts.RetryDelay > 0 {
		return v.opts.RetryDelay
	}
	return 2 * time.Second
}

func newHTTPClient(caBundle []byte) *http.Client {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if len(caBundle) > 0 {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		pool.AppendCertsFromPEM(caBundle)
		tlsConfig.RootCAs = pool
	}
	return &http.Client{Transport: &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsConfig,
	}}
}
