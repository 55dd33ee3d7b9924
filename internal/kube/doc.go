// Package kube provides the installer's view of the cluster control plane,
// wrapping k8s.io/client-go typed and dynamic clients.
//
// Reads return a found flag instead of a not-found error so callers can
// branch on presence. Writes are create-if-absent: the installer never
// overwrites an object it did not create in the same run.
package kube
