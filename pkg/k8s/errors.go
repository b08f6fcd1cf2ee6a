package k8s

import "errors"

// ErrKubeconfigPathEmpty is returned when kubeconfig path is empty.
var ErrKubeconfigPathEmpty = errors.New("kubeconfig path is empty")

// ErrObjectWithoutKind is returned when a manifest document has no kind.
var ErrObjectWithoutKind = errors.New("object has no kind set")
