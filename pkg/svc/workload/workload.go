// Package workload deploys the TLS-terminated test application used to verify a
// freshly provisioned cluster end to end.
package workload

import (
	"context"
	"fmt"
	"time"

	"github.com/devantler-tech/standalone/pkg/k8s"
	"github.com/devantler-tech/standalone/pkg/k8s/readiness"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

const (
	// Name is shared by the namespace, deployment, service and ingress.
	Name = "standalone-test"
	// TLSSecretName receives the certificate issued for the ingress; cert-manager
	// names the Certificate after it.
	TLSSecretName = "standalone-tls"
	// Image serves a small echo page on port 80.
	Image = "traefik/whoami:v1.11.0"
)

// Deployer applies the test workload and waits for it.
type Deployer struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	applier   k8s.ResourceApplier
	issuer    string
	timeout   time.Duration
	interval  time.Duration
}

// NewDeployer creates a Deployer. Each of its two waits is bounded by timeout on its own.
func NewDeployer(
	clientset kubernetes.Interface,
	dynamicClient dynamic.Interface,
	applier k8s.ResourceApplier,
	issuer string,
	timeout time.Duration,
) *Deployer {
	return &Deployer{
		clientset: clientset,
		dynamic:   dynamicClient,
		applier:   applier,
		issuer:    issuer,
		timeout:   timeout,
		interval:  readiness.DefaultInterval,
	}
}

// Host returns the test workload hostname under domain.
func Host(domain string) string {
	return "standalone." + domain
}

// Deploy submits the whole workload as one manifest, then waits for the deployment
// to become available and afterwards for the ingress certificate to become ready.
func (d *Deployer) Deploy(ctx context.Context, domain string) error {
	manifest, err := Manifest(domain, d.issuer)
	if err != nil {
		return err
	}

	err = d.applier.ApplyManifest(ctx, manifest)
	if err != nil {
		return fmt.Errorf("apply test workload: %w", err)
	}

	err = readiness.Wait(ctx, "deployment "+Name+" Available", d.timeout, d.interval,
		readiness.DeploymentsAvailable(d.clientset, Name, Name))
	if err != nil {
		return err
	}

	return readiness.Wait(ctx, "certificate "+TLSSecretName+" Ready", d.timeout, d.interval,
		readiness.CertificateReady(d.dynamic, Name, TLSSecretName))
}
