package readiness

import (
	"context"
	"fmt"

	"k8s.io/client-go/kubernetes"
)

// APIServerReachable passes once the API server answers a version request.
func APIServerReachable(clientset kubernetes.Interface) Check {
	return func(context.Context) (bool, error) {
		_, err := clientset.Discovery().ServerVersion()
		if err != nil {
			return false, fmt.Errorf("query server version: %w", err)
		}

		return true, nil
	}
}
