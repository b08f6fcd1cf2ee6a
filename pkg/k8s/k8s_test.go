package k8s_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/devantler-tech/standalone/pkg/k8s"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: k3d-standalone-cluster
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: k3d-standalone-cluster
  context:
    cluster: k3d-standalone-cluster
    user: admin@k3d-standalone-cluster
current-context: k3d-standalone-cluster
users:
- name: admin@k3d-standalone-cluster
  user:
    token: abc
`

func writeKubeconfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(testKubeconfig), 0o600))

	return path
}

func TestBuildRESTConfig(t *testing.T) {
	t.Parallel()

	_, err := k8s.BuildRESTConfig("", "")
	require.ErrorIs(t, err, k8s.ErrKubeconfigPathEmpty)

	cfg, err := k8s.BuildRESTConfig(writeKubeconfig(t), "k3d-standalone-cluster")
	require.NoError(t, err)
	assert.Equal(t, "https://127.0.0.1:6443", cfg.Host)

	_, err = k8s.BuildRESTConfig(writeKubeconfig(t), "k3d-missing")
	require.Error(t, err)
}

func TestNewClients(t *testing.T) {
	t.Parallel()

	clients, err := k8s.NewClients(writeKubeconfig(t), "", "")

	require.NoError(t, err)
	assert.NotNil(t, clients.Clientset)
	assert.NotNil(t, clients.Dynamic)
	assert.NotNil(t, clients.Applier)
}

func TestHasContext(t *testing.T) {
	t.Parallel()

	path := writeKubeconfig(t)

	ok, err := k8s.HasContext(path, "k3d-standalone-cluster")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = k8s.HasContext(path, "kind-other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = k8s.HasContext(filepath.Join(t.TempDir(), "absent"), "k3d-standalone-cluster")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecretValue(t *testing.T) {
	t.Parallel()

	clientset := fake.NewClientset(&corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "argocd-initial-admin-secret", Namespace: "argocd"},
		Data:       map[string][]byte{"password": []byte("hunter2")},
	})

	value, found, err := k8s.SecretValue(context.Background(), clientset, "argocd", "argocd-initial-admin-secret", "password")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hunter2", value)

	_, found, err = k8s.SecretValue(context.Background(), clientset, "argocd", "argocd-initial-admin-secret", "username")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = k8s.SecretValue(context.Background(), clientset, "argocd", "missing", "password")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSecretValue_APIError(t *testing.T) {
	t.Parallel()

	clientset := fake.NewClientset()
	clientset.PrependReactor("get", "secrets", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("connection refused")
	})

	_, _, err := k8s.SecretValue(context.Background(), clientset, "argocd", "x", "password")
	require.Error(t, err)
}

func TestRenderYAML(t *testing.T) {
	t.Parallel()

	replicas := int32(1)
	deployment := &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "demo"},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
	}

	out, err := k8s.RenderYAML(k8s.Namespace("demo"), deployment)

	require.NoError(t, err)

	rendered := string(out)
	assert.Contains(t, rendered, "kind: Namespace\nmetadata:\n  name: demo\n")
	assert.Contains(t, rendered, "\n---\napiVersion: apps/v1\nkind: Deployment\n")
	assert.Contains(t, rendered, "  replicas: 1\n")
	assert.NotContains(t, rendered, "creationTimestamp")
	assert.NotContains(t, rendered, "status:")
}

func TestDiagnosePods(t *testing.T) {
	t.Parallel()

	clientset := fake.NewClientset(
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "ok", Namespace: "argocd", Labels: map[string]string{"app": "x"}},
			Status: corev1.PodStatus{
				Phase:             corev1.PodRunning,
				ContainerStatuses: []corev1.ContainerStatus{{Ready: true}},
			},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "pulling", Namespace: "argocd", Labels: map[string]string{"app": "x"}},
			Status: corev1.PodStatus{
				Phase: corev1.PodPending,
				ContainerStatuses: []corev1.ContainerStatus{{
					Image: "quay.io/argoproj/argocd:v3",
					State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "ImagePullBackOff"}},
				}},
			},
		},
	)

	got := k8s.DiagnosePods(context.Background(), clientset, "argocd", "app=x")

	assert.Equal(t, "unhealthy pods in argocd:\npulling: ImagePullBackOff for quay.io/argoproj/argocd:v3", got)
	assert.Empty(t, k8s.DiagnosePods(context.Background(), clientset, "kube-system", ""))
}
