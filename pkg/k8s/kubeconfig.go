package k8s

import (
	"errors"
	"fmt"
	"io/fs"

	"k8s.io/client-go/tools/clientcmd"
)

// HasContext reports whether the kubeconfig at path defines contextName.
// A missing file is not an error.
func HasContext(path, contextName string) (bool, error) {
	if path == "" {
		return false, ErrKubeconfigPathEmpty
	}

	config, err := clientcmd.LoadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	_, ok := config.Contexts[contextName]

	return ok, nil
}
