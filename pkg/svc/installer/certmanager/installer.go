// Package certmanagerinstaller installs cert-manager and makes the local mkcert CA
// available to it as a ClusterIssuer.
package certmanagerinstaller

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/devantler-tech/standalone/pkg/client/helm"
	"github.com/devantler-tech/standalone/pkg/k8s"
	"github.com/devantler-tech/standalone/pkg/k8s/readiness"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

const (
	repoName     = "jetstack"
	repoURL      = "https://charts.jetstack.io"
	releaseName  = "cert-manager"
	chartName    = "jetstack/cert-manager"
	chartVersion = "v1.18.2"

	// Namespace is where cert-manager and the CA secret live.
	Namespace = "cert-manager"
	// CASecretName holds the mkcert root certificate and key.
	CASecretName = "mkcert-ca"
	// IssuerName is the ClusterIssuer signing certificates with the mkcert CA.
	IssuerName = "mkcert-ca-issuer"
)

//nolint:gochecknoglobals // fixed component list
var deployments = []string{"cert-manager", "cert-manager-cainjector", "cert-manager-webhook"}

// Installer installs or upgrades cert-manager and its CA issuer.
type Installer struct {
	helm      helm.Interface
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	applier   k8s.ResourceApplier
	timeout   time.Duration
	interval  time.Duration
}

// NewInstaller creates a cert-manager installer. Every readiness wait is bounded by timeout.
func NewInstaller(
	helmClient helm.Interface,
	clientset kubernetes.Interface,
	dynamicClient dynamic.Interface,
	applier k8s.ResourceApplier,
	timeout time.Duration,
) *Installer {
	return &Installer{
		helm:      helmClient,
		clientset: clientset,
		dynamic:   dynamicClient,
		applier:   applier,
		timeout:   timeout,
		interval:  readiness.DefaultInterval,
	}
}

// Install ensures the namespace, installs the chart with CRDs, waits for the
// controller deployments and then applies the CA secret and ClusterIssuer built
// from the given PEM files.
func (i *Installer) Install(ctx context.Context, caCertPath, caKeyPath string) error {
	caCert, err := os.ReadFile(caCertPath) //nolint:gosec // path comes from mkcert -CAROOT
	if err != nil {
		return fmt.Errorf("read CA certificate: %w", err)
	}

	caKey, err := os.ReadFile(caKeyPath) //nolint:gosec // path comes from mkcert -CAROOT
	if err != nil {
		return fmt.Errorf("read CA key: %w", err)
	}

	err = i.applier.ApplyObjects(ctx, k8s.Namespace(Namespace))
	if err != nil {
		return fmt.Errorf("ensure %s namespace: %w", Namespace, err)
	}

	err = helm.InstallOrUpgradeChart(ctx, i.helm,
		helm.RepoConfig{Name: repoName, URL: repoURL, RepoName: "cert-manager"},
		helm.ChartConfig{
			ReleaseName: releaseName,
			ChartName:   chartName,
			Namespace:   Namespace,
			Version:     chartVersion,
			SetValues:   map[string]string{"crds.enabled": "true"},
		},
		i.timeout,
	)
	if err != nil {
		return err
	}

	err = readiness.Wait(ctx, "cert-manager deployments available", i.timeout, i.interval,
		readiness.DeploymentsAvailable(i.clientset, Namespace, deployments...))
	if err != nil {
		return err
	}

	return i.applyIssuer(ctx, caCert, caKey)
}

// applyIssuer retries the apply until the webhook accepts it, then waits for the
// issuer to report Ready.
func (i *Installer) applyIssuer(ctx context.Context, caCert, caKey []byte) error {
	objects := Resources(caCert, caKey)

	err := readiness.Wait(ctx, "CA secret and ClusterIssuer "+IssuerName+" applied", i.timeout, i.interval,
		func(ctx context.Context) (bool, error) {
			applyErr := i.applier.ApplyObjects(ctx, objects...)
			if applyErr != nil {
				return false, applyErr
			}

			return true, nil
		})
	if err != nil {
		return err
	}

	return readiness.Wait(ctx, "ClusterIssuer "+IssuerName+" Ready", i.timeout, i.interval,
		readiness.ClusterIssuerReady(i.dynamic, IssuerName))
}
