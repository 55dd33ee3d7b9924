// Package labels provides consistent labeling for objects the installer
// creates outside of the Helm release.
//
// Secrets and bucket jobs carry the managed-by and instance labels so that a
// complete cleanup can find them again without touching user-owned objects.
package labels

import "fmt"

// Standard label keys.
const (
	// KeyManagedBy identifies the management system
	KeyManagedBy = "app.kubernetes.io/managed-by"

	// KeyInstance identifies the release the object belongs to
	KeyInstance = "app.kubernetes.io/instance"

	// KeyComponent identifies what the object is for
	KeyComponent = "app.kubernetes.io/component"

	// KeyPartOf groups everything that belongs to the application
	KeyPartOf = "app.kubernetes.io/part-of"
)

// ManagedByInstaller marks objects created by this installer.
const ManagedByInstaller = "cost-onprem-installer"

// PartOfApplication is the application name used for part-of.
const PartOfApplication = "cost-onprem"

// Component values
const (
	ComponentDatabase = "database"
	ComponentStorage  = "storage"
	ComponentAuth     = "auth"
	ComponentUI       = "ui"
	ComponentTrust    = "trust"
	ComponentBuckets  = "bucket-setup"
)

// LabelBuilder provides a fluent interface for building object labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the release name pre-set.
func NewLabelBuilder(release string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyInstance:  release,
			KeyManagedBy: ManagedByInstaller,
			KeyPartOf:    PartOfApplication,
		},
	}
}

// WithComponent adds a component label.
func (lb *LabelBuilder) WithComponent(component string) *LabelBuilder {
	if component != "" {
		lb.labels[KeyComponent] = component
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorForRelease returns a label selector matching every object the
// installer created for a release.
func SelectorForRelease(release string) string {
	return fmt.Sprintf("%s=%s,%s=%s", KeyManagedBy, ManagedByInstaller, KeyInstance, release)
}
