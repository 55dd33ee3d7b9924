package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// IsAbsent reports whether err means the object, or its resource type, does
// not exist on the cluster.
func IsAbsent(err error) bool {
	return apierrors.IsNotFound(err) || meta.IsNoMatchError(err)
}

// GetSecret fetches a secret. found is false when it does not exist.
func (c *Client) GetSecret(ctx context.Context, namespace, name string) (*corev1.Secret, bool, error) {
	secret, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}
	return secret, true, nil
}

// CreateSecretIfAbsent creates the secret unless one with the same name
// already exists. An existing secret is never modified.
func (c *Client) CreateSecretIfAbsent(ctx context.Context, secret *corev1.Secret) (bool, error) {
	if secret.Namespace == "" {
		return false, fmt.Errorf("secret namespace is required")
	}
	if secret.Name == "" {
		return false, fmt.Errorf("secret name is required")
	}

	_, found, err := c.GetSecret(ctx, secret.Namespace, secret.Name)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	_, err = c.clientset.CoreV1().Secrets(secret.Namespace).Create(ctx, secret, metav1.CreateOptions{})
	if err != nil {
		// Created concurrently by another writer.
		if apierrors.IsAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create secret %s/%s: %w", secret.Namespace, secret.Name, err)
	}
	return true, nil
}

// DeleteSecret deletes a secret, returning nil if not found.
func (c *Client) DeleteSecret(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().Secrets(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete secret %s/%s: %w", namespace, name, err)
	}
	return nil
}

// ListSecrets lists secrets matching a label selector.
func (c *Client) ListSecrets(ctx context.Context, namespace, selector string) ([]corev1.Secret, error) {
	list, err := c.clientset.CoreV1().Secrets(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets in %s: %w", namespace, err)
	}
	return list.Items, nil
}

// GetConfigMap fetches a config map. found is false when it does not exist.
func (c *Client) GetConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, bool, error) {
	cm, err := c.clientset.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get configmap %s/%s: %w", namespace, name, err)
	}
	return cm, true, nil
}

// GetNamespace fetches a namespace. found is false when it does not exist.
func (c *Client) GetNamespace(ctx context.Context, name string) (*corev1.Namespace, bool, error) {
	ns, err := c.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get namespace %s: %w", name, err)
	}
	return ns, true, nil
}

// EnsureNamespace creates the namespace if it does not exist.
func (c *Client) EnsureNamespace(ctx context.Context, name string) (bool, error) {
	_, found, err := c.GetNamespace(ctx, name)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	if _, err := c.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create namespace %s: %w", name, err)
	}
	return true, nil
}

// GetResource fetches a custom resource. found is false when either the object
// or its resource type does not exist.
func (c *Client) GetResource(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (*unstructured.Unstructured, bool, error) {
	var (
		obj *unstructured.Unstructured
		err error
	)
	if namespace == "" {
		obj, err = c.dynamicClient.Resource(gvr).Get(ctx, name, metav1.GetOptions{})
	} else {
		obj, err = c.dynamicClient.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	}
	if err != nil {
		if IsAbsent(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s %s/%s: %w", gvr.Resource, namespace, name, err)
	}
	return obj, true, nil
}

// ListResources lists custom resources in a namespace, or across all
// namespaces when namespace is empty. A missing resource type yields an
// empty list.
func (c *Client) ListResources(ctx context.Context, gvr schema.GroupVersionResource, namespace string) ([]unstructured.Unstructured, error) {
	list, err := c.dynamicClient.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		if IsAbsent(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", gvr.Resource, err)
	}
	return list.Items, nil
}
