package readiness

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

//nolint:gochecknoglobals // immutable resource identifiers
var (
	// CertificateGVR identifies cert-manager Certificate resources.
	CertificateGVR = schema.GroupVersionResource{Group: "cert-manager.io", Version: "v1", Resource: "certificates"}
	// ClusterIssuerGVR identifies cert-manager ClusterIssuer resources.
	ClusterIssuerGVR = schema.GroupVersionResource{Group: "cert-manager.io", Version: "v1", Resource: "clusterissuers"}
)

// CertificateReady passes once the cert-manager Certificate reports condition Ready=True.
func CertificateReady(client dynamic.Interface, namespace, name string) Check {
	return ConditionTrue(client, CertificateGVR, namespace, name, "Ready")
}

// ClusterIssuerReady passes once the cert-manager ClusterIssuer reports condition Ready=True.
func ClusterIssuerReady(client dynamic.Interface, name string) Check {
	return ConditionTrue(client, ClusterIssuerGVR, "", name, "Ready")
}

// ConditionTrue passes once the object reports status.conditions[type=conditionType]
// with status "True". An empty namespace addresses a cluster-scoped object.
func ConditionTrue(
	client dynamic.Interface,
	gvr schema.GroupVersionResource,
	namespace, name, conditionType string,
) Check {
	return func(ctx context.Context) (bool, error) {
		var resource dynamic.ResourceInterface = client.Resource(gvr)
		if namespace != "" {
			resource = client.Resource(gvr).Namespace(namespace)
		}

		obj, err := resource.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Errorf("get %s %s: %w", gvr.Resource, name, err)
		}

		return hasCondition(obj, conditionType), nil
	}
}

func hasCondition(obj *unstructured.Unstructured, conditionType string) bool {
	conditions, found, err := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if err != nil || !found {
		return false
	}

	for _, raw := range conditions {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if cond["type"] == conditionType && cond["status"] == "True" {
			return true
		}
	}

	return false
}
