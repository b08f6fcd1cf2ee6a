// Package k8s builds Kubernetes clients for the provisioned cluster and applies
// manifests to it.
//
// Manifests are submitted with server-side apply, so applying the same objects
// twice converges instead of failing. For readiness polling see the [readiness]
// sub-package.
package k8s
