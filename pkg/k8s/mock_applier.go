package k8s

import (
	"context"
	"sync"

	"k8s.io/apimachinery/pkg/runtime"
)

// RecordingApplier is a ResourceApplier for tests that records everything it is
// asked to apply.
type RecordingApplier struct {
	mu        sync.Mutex
	Manifests [][]byte
	Objects   []runtime.Object
	// Errs is consumed one entry per call. A nil entry or an empty queue means success.
	Errs []error
}

var _ ResourceApplier = (*RecordingApplier)(nil)

// ApplyManifest records manifest.
func (r *RecordingApplier) ApplyManifest(_ context.Context, manifest []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.next()
	if err != nil {
		return err
	}

	r.Manifests = append(r.Manifests, manifest)

	return nil
}

// ApplyObjects records objs.
func (r *RecordingApplier) ApplyObjects(_ context.Context, objs ...runtime.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.next()
	if err != nil {
		return err
	}

	r.Objects = append(r.Objects, objs...)

	return nil
}

// Kinds returns the kinds of the recorded objects in apply order.
func (r *RecordingApplier) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]string, 0, len(r.Objects))
	for _, obj := range r.Objects {
		kinds = append(kinds, obj.GetObjectKind().GroupVersionKind().Kind)
	}

	return kinds
}

func (r *RecordingApplier) next() error {
	if len(r.Errs) == 0 {
		return nil
	}

	err := r.Errs[0]
	r.Errs = r.Errs[1:]

	return err
}
