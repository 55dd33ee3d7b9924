package kube

import "k8s.io/apimachinery/pkg/runtime/schema"

// Custom resources read through the dynamic client.
var (
	// ObjectBucketClaimGVR is the bucket-claim resource served by the
	// lib-bucket-provisioner based controllers (ODF, Rook).
	ObjectBucketClaimGVR = schema.GroupVersionResource{
		Group: "objectbucket.io", Version: "v1alpha1", Resource: "objectbucketclaims",
	}

	// KeycloakGVR is the Keycloak operator's instance resource.
	KeycloakGVR = schema.GroupVersionResource{
		Group: "k8s.keycloak.org", Version: "v2alpha1", Resource: "keycloaks",
	}

	// KafkaGVR is the Strimzi / AMQ Streams Kafka cluster resource.
	KafkaGVR = schema.GroupVersionResource{
		Group: "kafka.strimzi.io", Version: "v1beta2", Resource: "kafkas",
	}

	// RouteGVR is the OpenShift route resource.
	RouteGVR = schema.GroupVersionResource{
		Group: "route.openshift.io", Version: "v1", Resource: "routes",
	}

	// IngressConfigGVR is the cluster-scoped OpenShift ingress configuration.
	IngressConfigGVR = schema.GroupVersionResource{
		Group: "config.openshift.io", Version: "v1", Resource: "ingresses",
	}
)

// ListKinds maps each custom resource to its list kind. Fake dynamic clients
// need this registration to serve List calls.
func ListKinds() map[schema.GroupVersionResource]string {
	return map[schema.GroupVersionResource]string{
		ObjectBucketClaimGVR: "ObjectBucketClaimList",
		KeycloakGVR:          "KeycloakList",
		KafkaGVR:             "KafkaList",
		RouteGVR:             "RouteList",
		IngressConfigGVR:     "IngressList",
	}
}

// OpenShiftRouteGroup is the API group whose presence identifies OpenShift.
const OpenShiftRouteGroup = "route.openshift.io"
