package k8s

import (
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ClusterIssuerAnnotation asks cert-manager's ingress-shim for a certificate.
const ClusterIssuerAnnotation = "cert-manager.io/cluster-issuer"

// DefaultIngressClass is the ingress controller bundled with k3s.
const DefaultIngressClass = "traefik"

// TLSIngressSpec describes a single-host ingress terminating TLS with a
// certificate issued by a cert-manager ClusterIssuer.
type TLSIngressSpec struct {
	Name        string
	Namespace   string
	Host        string
	ServiceName string
	ServicePort int32
	SecretName  string
	Issuer      string
	// ClassName defaults to DefaultIngressClass.
	ClassName string
}

// TLSIngress builds the ingress described by spec.
func TLSIngress(spec TLSIngressSpec) *networkingv1.Ingress {
	className := spec.ClassName
	if className == "" {
		className = DefaultIngressClass
	}

	pathType := networkingv1.PathTypePrefix

	return &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        spec.Name,
			Namespace:   spec.Namespace,
			Annotations: map[string]string{ClusterIssuerAnnotation: spec.Issuer},
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: &className,
			TLS: []networkingv1.IngressTLS{
				{Hosts: []string{spec.Host}, SecretName: spec.SecretName},
			},
			Rules: []networkingv1.IngressRule{{
				Host: spec.Host,
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     "/",
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: spec.ServiceName,
									Port: networkingv1.ServiceBackendPort{Number: spec.ServicePort},
								},
							},
						}},
					},
				},
			}},
		},
	}
}
