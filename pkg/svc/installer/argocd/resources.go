package argocdinstaller

import (
	"github.com/devantler-tech/standalone/pkg/k8s"
	networkingv1 "k8s.io/api/networking/v1"
)

const (
	serverService = "argocd-server"
	// TLSSecretName receives the certificate issued for the Argo CD ingress.
	TLSSecretName = "argocd-server-tls"
)

// Host returns the Argo CD hostname under domain.
func Host(domain string) string {
	return "argocd." + domain
}

// Ingress routes argocd.<domain> to the Argo CD server over plain HTTP inside the
// cluster; TLS terminates at the ingress controller.
func Ingress(domain, issuer string) *networkingv1.Ingress {
	return k8s.TLSIngress(k8s.TLSIngressSpec{
		Name:        serverService,
		Namespace:   Namespace,
		Host:        Host(domain),
		ServiceName: serverService,
		ServicePort: 80,
		SecretName:  TLSSecretName,
		Issuer:      issuer,
	})
}
