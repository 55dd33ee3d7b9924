package kube

import (
	"context"
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the typed clientset, the dynamic client and the REST config of
// the target cluster. Typed objects (secrets, config maps, jobs, workloads)
// go through the clientset; custom resources that have no Go types in this
// module (bucket claims, Keycloak, Kafka, routes) go through the dynamic client.
type Client struct {
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	restConfig    *rest.Config
}

// New creates a Client from a kubeconfig path. An empty path uses the default
// loading rules (KUBECONFIG, ~/.kube/config, in-cluster).
func New(kubeconfigPath string) (*Client, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{})

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		restConfig:    restConfig,
	}, nil
}

// NewFromClients creates a Client from pre-configured clients.
// This is useful for testing with fake clients.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface) *Client {
	return &Client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		restConfig:    &rest.Config{Host: "https://fake.cluster.local:6443"},
	}
}

// Clientset returns the typed clientset.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// Dynamic returns the dynamic client.
func (c *Client) Dynamic() dynamic.Interface {
	return c.dynamicClient
}

// RESTConfig returns the REST configuration used by the clients.
func (c *Client) RESTConfig() *rest.Config {
	return c.restConfig
}

// ServerURL identifies the cluster, used as the broker cache key.
func (c *Client) ServerURL() string {
	if c.restConfig == nil {
		return ""
	}
	return c.restConfig.Host
}

// Ping verifies the control plane is reachable and returns its version.
func (c *Client) Ping(_ context.Context) (string, error) {
	info, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("control plane unreachable: %w", err)
	}
	return info.GitVersion, nil
}

// HasAPIGroup reports whether the API server serves the given group.
func (c *Client) HasAPIGroup(_ context.Context, group string) (bool, error) {
	groups, err := c.clientset.Discovery().ServerGroups()
	if err != nil {
		return false, fmt.Errorf("failed to discover API groups: %w", err)
	}
	for _, g := range groups.Groups {
		if g.Name == group {
			return true, nil
		}
	}
	return false, nil
}
