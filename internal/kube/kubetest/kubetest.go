// Package kubetest builds kube.Client instances backed by client-go fakes.
package kubetest

import (
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	fakediscovery "k8s.io/client-go/discovery/fake"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/cost-onprem/installer/internal/kube"
)

// Cluster bundles a kube.Client with the fakes behind it so tests can seed
// objects and inspect recorded actions.
type Cluster struct {
	Client    *kube.Client
	Clientset *fake.Clientset
	Dynamic   *dynamicfake.FakeDynamicClient
}

// NewCluster creates a fake cluster seeded with typed objects (secrets,
// config maps, namespaces...) and unstructured custom resources.
func NewCluster(typed []runtime.Object, custom ...runtime.Object) *Cluster {
	clientset := fake.NewClientset(typed...)
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), kube.ListKinds(), custom...)
	return &Cluster{
		Client:    kube.NewFromClients(clientset, dyn),
		Clientset: clientset,
		Dynamic:   dyn,
	}
}

// WithAPIGroups makes the fake discovery client serve the given API groups.
func (c *Cluster) WithAPIGroups(groups ...string) *Cluster {
	disco := c.Clientset.Discovery().(*fakediscovery.FakeDiscovery)
	for _, g := range groups {
		disco.Resources = append(disco.Resources, &metav1.APIResourceList{GroupVersion: g + "/v1"})
	}
	return c
}

// Writes returns the create/update/patch actions recorded against a resource.
func (c *Cluster) Writes(resource string) []string {
	var names []string
	for _, action := range c.Clientset.Actions() {
		if action.GetResource().Resource != resource {
			continue
		}
		switch action.GetVerb() {
		case "create", "update", "patch":
			if ca, ok := action.(interface{ GetObject() runtime.Object }); ok {
				if obj, ok := ca.GetObject().(metav1.Object); ok {
					names = append(names, action.GetVerb()+":"+obj.GetName())
					continue
				}
			}
			names = append(names, action.GetVerb())
		}
	}
	return names
}

// Object builds an unstructured custom resource. fields are merged at the top
// level (spec, status...).
func Object(apiVersion, kind, namespace, name string, fields map[string]any) *unstructured.Unstructured {
	obj := map[string]any{
		"apiVersion": apiVersion,
		"kind":       kind,
		"metadata": map[string]any{
			"name": name,
		},
	}
	if namespace != "" {
		obj["metadata"].(map[string]any)["namespace"] = namespace
	}
	for k, v := range fields {
		obj[k] = v
	}
	return &unstructured.Unstructured{Object: obj}
}

// HasWriteTo reports whether any write recorded by Writes targets name.
func HasWriteTo(writes []string, name string) bool {
	for _, w := range writes {
		if strings.HasSuffix(w, ":"+name) {
			return true
		}
	}
	return false
}
