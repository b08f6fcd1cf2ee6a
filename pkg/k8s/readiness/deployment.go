package readiness

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// DeploymentsAvailable passes once every named deployment in namespace reports
// condition Available=True for its current generation.
func DeploymentsAvailable(clientset kubernetes.Interface, namespace string, names ...string) Check {
	return func(ctx context.Context) (bool, error) {
		for _, name := range names {
			deployment, err := clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return false, fmt.Errorf("get deployment %s/%s: %w", namespace, name, err)
			}

			if !isDeploymentAvailable(deployment) {
				return false, nil
			}
		}

		return true, nil
	}
}

func isDeploymentAvailable(deployment *appsv1.Deployment) bool {
	if deployment.Status.ObservedGeneration < deployment.Generation {
		return false
	}

	for _, cond := range deployment.Status.Conditions {
		if cond.Type == appsv1.DeploymentAvailable {
			return cond.Status == corev1.ConditionTrue
		}
	}

	return false
}
