package k8s

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// DiagnosePods summarizes the unhealthy pods in namespace that match selector,
// one line per pod. It returns an empty string when every pod is healthy.
func DiagnosePods(ctx context.Context, clientset kubernetes.Interface, namespace, selector string) string {
	pods, err := clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return fmt.Sprintf("failed to list pods in %s: %v", namespace, err)
	}

	var lines []string

	for i := range pods.Items {
		pod := &pods.Items[i]
		if !isPodHealthy(pod) {
			lines = append(lines, describePodFailure(pod))
		}
	}

	if len(lines) == 0 {
		return ""
	}

	return "unhealthy pods in " + namespace + ":\n" + strings.Join(lines, "\n")
}

func isPodHealthy(pod *corev1.Pod) bool {
	switch pod.Status.Phase {
	case corev1.PodSucceeded:
		return true
	case corev1.PodRunning:
		for _, status := range pod.Status.ContainerStatuses {
			if !status.Ready {
				return false
			}
		}

		return true
	default:
		return false
	}
}

func describePodFailure(pod *corev1.Pod) string {
	for _, status := range pod.Status.InitContainerStatuses {
		if status.State.Waiting != nil && status.State.Waiting.Reason != "" {
			return fmt.Sprintf("%s: init container %s: %s", pod.Name, status.Name, status.State.Waiting.Reason)
		}
	}

	for _, status := range pod.Status.ContainerStatuses {
		if status.State.Waiting != nil && status.State.Waiting.Reason != "" {
			return fmt.Sprintf("%s: %s for %s", pod.Name, status.State.Waiting.Reason, status.Image)
		}

		if status.State.Terminated != nil && status.State.Terminated.ExitCode != 0 {
			return fmt.Sprintf("%s: exited with code %d (%s)",
				pod.Name, status.State.Terminated.ExitCode, status.State.Terminated.Reason)
		}
	}

	if pod.Status.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", pod.Name, pod.Status.Phase, pod.Status.Reason)
	}

	return fmt.Sprintf("%s: %s", pod.Name, pod.Status.Phase)
}
