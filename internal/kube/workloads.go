package kube

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// InstanceLabel is the standard label Helm charts put on every release object.
const InstanceLabel = "app.kubernetes.io/instance"

// ReleaseSelector returns the label selector for a release's objects.
func ReleaseSelector(release string) string {
	return fmt.Sprintf("%s=%s", InstanceLabel, release)
}

// WorkloadStatus summarizes the readiness of one Deployment or StatefulSet.
type WorkloadStatus struct {
	Kind    string
	Name    string
	Desired int32
	Ready   int32
}

// IsReady reports whether all desired replicas are ready.
func (w WorkloadStatus) IsReady() bool {
	return w.Ready >= w.Desired
}

// ListWorkloads returns the readiness of every Deployment and StatefulSet
// matching the selector, sorted by kind and name.
func (c *Client) ListWorkloads(ctx context.Context, namespace, selector string) ([]WorkloadStatus, error) {
	opts := metav1.ListOptions{LabelSelector: selector}

	deployments, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	statefulSets, err := c.clientset.AppsV1().StatefulSets(namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list statefulsets: %w", err)
	}

	var result []WorkloadStatus
	for _, d := range deployments.Items {
		desired := int32(1)
		if d.Spec.Replicas != nil {
			desired = *d.Spec.Replicas
		}
		ready := rolledOutReady(d.Status.ReadyReplicas, d.Status.UpdatedReplicas, desired, d.Status.ObservedGeneration, d.Generation)
		result = append(result, WorkloadStatus{Kind: "Deployment", Name: d.Name, Desired: desired, Ready: ready})
	}
	for _, s := range statefulSets.Items {
		desired := int32(1)
		if s.Spec.Replicas != nil {
			desired = *s.Spec.Replicas
		}
		ready := rolledOutReady(s.Status.ReadyReplicas, s.Status.UpdatedReplicas, desired, s.Status.ObservedGeneration, s.Generation)
		result = append(result, WorkloadStatus{Kind: "StatefulSet", Name: s.Name, Desired: desired, Ready: ready})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Kind != result[j].Kind {
			return result[i].Kind < result[j].Kind
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// rolledOutReady counts only updated replicas while a rollout is in progress,
// since the old replicas still report ready.
func rolledOutReady(ready, updated, desired int32, observed, generation int64) int32 {
	if observed < generation || updated < desired {
		return min(ready, updated)
	}
	return ready
}

// ReadyPodForService returns the name of a running, ready pod selected by the
// service's selector.
func (c *Client) ReadyPodForService(ctx context.Context, namespace, service string) (string, error) {
	svc, err := c.clientset.CoreV1().Services(namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get service %s/%s: %w", namespace, service, err)
	}
	if len(svc.Spec.Selector) == 0 {
		return "", fmt.Errorf("service %s/%s has no selector", namespace, service)
	}

	selector := metav1.FormatLabelSelector(&metav1.LabelSelector{MatchLabels: svc.Spec.Selector})
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return "", fmt.Errorf("failed to list pods for service %s: %w", service, err)
	}
	for i := range pods.Items {
		if IsPodReady(&pods.Items[i]) {
			return pods.Items[i].Name, nil
		}
	}
	return "", fmt.Errorf("no ready pod behind service %s/%s", namespace, service)
}

// ListPods lists pods matching a label selector.
func (c *Client) ListPods(ctx context.Context, namespace, selector string) ([]corev1.Pod, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return pods.Items, nil
}

// IsPodReady checks if a pod is running and reports the Ready condition.
func IsPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}

	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}

	return false
}

// ListPVCs lists persistent volume claims matching a label selector.
func (c *Client) ListPVCs(ctx context.Context, namespace, selector string) ([]corev1.PersistentVolumeClaim, error) {
	list, err := c.clientset.CoreV1().PersistentVolumeClaims(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list PVCs: %w", err)
	}
	return list.Items, nil
}

// DeletePVC deletes a persistent volume claim, returning nil if not found.
func (c *Client) DeletePVC(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().PersistentVolumeClaims(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete PVC %s/%s: %w", namespace, name, err)
	}
	return nil
}

// DeleteNamespace deletes a namespace, returning nil if not found.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	err := c.clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete namespace %s: %w", name, err)
	}
	return nil
}
