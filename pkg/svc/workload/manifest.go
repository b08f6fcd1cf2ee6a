package workload

import (
	"fmt"

	"github.com/devantler-tech/standalone/pkg/k8s"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const httpPort = 80

// Manifest renders namespace, deployment, service and ingress as one YAML stream.
func Manifest(domain, issuer string) ([]byte, error) {
	labels := map[string]string{"app": Name}
	replicas := int32(1)

	deployment := &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{Name: Name, Namespace: Name, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  Name,
						Image: Image,
						Ports: []corev1.ContainerPort{{Name: "http", ContainerPort: httpPort}},
					}},
				},
			},
		},
	}

	service := &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{Name: Name, Namespace: Name, Labels: labels},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: labels,
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       httpPort,
				TargetPort: intstr.FromString("http"),
			}},
		},
	}

	ingress := k8s.TLSIngress(k8s.TLSIngressSpec{
		Name:        Name,
		Namespace:   Name,
		Host:        Host(domain),
		ServiceName: Name,
		ServicePort: httpPort,
		SecretName:  TLSSecretName,
		Issuer:      issuer,
	})

	manifest, err := k8s.RenderYAML(k8s.Namespace(Name), deployment, service, ingress)
	if err != nil {
		return nil, fmt.Errorf("render test workload: %w", err)
	}

	return manifest, nil
}
