// Package argocdinstaller installs Argo CD and exposes its server through a
// TLS-terminated ingress signed by the local CA issuer.
package argocdinstaller

import (
	"context"
	"fmt"
	"time"

	"github.com/devantler-tech/standalone/pkg/client/helm"
	"github.com/devantler-tech/standalone/pkg/k8s"
	"github.com/devantler-tech/standalone/pkg/k8s/readiness"
	"k8s.io/client-go/kubernetes"
)

const (
	repoName     = "argo"
	repoURL      = "https://argoproj.github.io/argo-helm"
	releaseName  = "argocd"
	chartName    = "argo/argo-cd"
	chartVersion = "8.1.3"

	// Namespace is where Argo CD is installed.
	Namespace = "argocd"
	// ServerSelector matches the Argo CD API server pods.
	ServerSelector = "app.kubernetes.io/name=argocd-server"

	initialAdminSecret = "argocd-initial-admin-secret"
)

// chartValues disables the chart's own ingress; TLS ends at the cluster ingress.
const chartValues = `server:
  ingress:
    enabled: false
configs:
  params:
    server.insecure: true
`

// Installer installs or upgrades Argo CD.
type Installer struct {
	helm      helm.Interface
	clientset kubernetes.Interface
	applier   k8s.ResourceApplier
	issuer    string
	timeout   time.Duration
	interval  time.Duration
}

// NewInstaller creates an Argo CD installer whose ingress certificate is requested
// from the ClusterIssuer named issuer.
func NewInstaller(
	helmClient helm.Interface,
	clientset kubernetes.Interface,
	applier k8s.ResourceApplier,
	issuer string,
	timeout time.Duration,
) *Installer {
	return &Installer{
		helm:      helmClient,
		clientset: clientset,
		applier:   applier,
		issuer:    issuer,
		timeout:   timeout,
		interval:  readiness.DefaultInterval,
	}
}

// Install installs the chart with its own ingress disabled, applies the ingress
// for argocd.<domain> and waits until an API server pod is ready.
func (i *Installer) Install(ctx context.Context, domain string) error {
	err := helm.InstallOrUpgradeChart(ctx, i.helm,
		helm.RepoConfig{Name: repoName, URL: repoURL, RepoName: "Argo CD"},
		helm.ChartConfig{
			ReleaseName:     releaseName,
			ChartName:       chartName,
			Namespace:       Namespace,
			Version:         chartVersion,
			CreateNamespace: true,
			ValuesYaml:      chartValues,
		},
		i.timeout,
	)
	if err != nil {
		return err
	}

	err = i.applier.ApplyObjects(ctx, Ingress(domain, i.issuer))
	if err != nil {
		return fmt.Errorf("apply Argo CD ingress: %w", err)
	}

	err = readiness.Wait(ctx, "Argo CD server pod Ready", i.timeout, i.interval,
		readiness.AnyPodReady(i.clientset, Namespace, ServerSelector))
	if err != nil {
		diagnosis := k8s.DiagnosePods(ctx, i.clientset, Namespace, ServerSelector)
		if diagnosis != "" {
			return fmt.Errorf("%w\n%s", err, diagnosis)
		}

		return err
	}

	return nil
}

// AdminPassword returns the generated initial admin password. found is false once
// the secret has been deleted, which Argo CD recommends after first login.
func (i *Installer) AdminPassword(ctx context.Context) (string, bool, error) {
	password, found, err := k8s.SecretValue(ctx, i.clientset, Namespace, initialAdminSecret, "password")
	if err != nil {
		return "", false, fmt.Errorf("read Argo CD admin password: %w", err)
	}

	return password, found, nil
}
