package k8s

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/devantler-tech/standalone/pkg/svc/provisionerr"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
)

// DefaultFieldManager owns every field this tool applies.
const DefaultFieldManager = "standalone"

const decoderBufferSize = 4096

// ResourceApplier submits manifests or objects to the cluster.
type ResourceApplier interface {
	ApplyManifest(ctx context.Context, manifest []byte) error
	ApplyObjects(ctx context.Context, objs ...runtime.Object) error
}

var _ ResourceApplier = (*Applier)(nil)

// Applier submits objects with server-side apply. Conflicting field owners are
// overridden, so an applied object always ends up exactly as rendered.
type Applier struct {
	dynamic      dynamic.Interface
	mapper       meta.RESTMapper
	fieldManager string
}

// NewApplier returns an Applier; an empty fieldManager selects DefaultFieldManager.
func NewApplier(dynamicClient dynamic.Interface, mapper meta.RESTMapper, fieldManager string) *Applier {
	if fieldManager == "" {
		fieldManager = DefaultFieldManager
	}

	return &Applier{dynamic: dynamicClient, mapper: mapper, fieldManager: fieldManager}
}

// ApplyManifest applies every document of a multi-document YAML or JSON stream in order.
// Empty documents are skipped. Application stops at the first rejected object.
func (a *Applier) ApplyManifest(ctx context.Context, manifest []byte) error {
	decoder := yaml.NewYAMLOrJSONDecoder(bytes.NewReader(manifest), decoderBufferSize)

	for index := 0; ; index++ {
		var obj unstructured.Unstructured

		err := decoder.Decode(&obj)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to decode manifest document %d: %w", index, err)
		}

		if len(obj.Object) == 0 {
			continue
		}

		err = a.apply(ctx, &obj)
		if err != nil {
			return err
		}
	}
}

// ApplyObjects converts typed or unstructured objects and applies them in order.
func (a *Applier) ApplyObjects(ctx context.Context, objs ...runtime.Object) error {
	for _, obj := range objs {
		converted, err := ToUnstructured(obj)
		if err != nil {
			return err
		}

		err = a.apply(ctx, converted)
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *Applier) apply(ctx context.Context, obj *unstructured.Unstructured) error {
	applyErr := func(err error) error {
		return &provisionerr.ApplyError{
			Kind:      obj.GetKind(),
			Namespace: obj.GetNamespace(),
			Name:      obj.GetName(),
			Err:       err,
		}
	}

	gvk := obj.GroupVersionKind()
	if gvk.Kind == "" {
		return applyErr(ErrObjectWithoutKind)
	}

	mapping, err := a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if meta.IsNoMatchError(err) {
		if resettable, ok := a.mapper.(meta.ResettableRESTMapper); ok {
			resettable.Reset()
			mapping, err = a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
		}
	}

	if err != nil {
		return applyErr(fmt.Errorf("resolve REST mapping for %s: %w", gvk, err))
	}

	data, err := obj.MarshalJSON()
	if err != nil {
		return applyErr(fmt.Errorf("marshal object: %w", err))
	}

	force := true
	opts := metav1.PatchOptions{FieldManager: a.fieldManager, Force: &force}

	var resource dynamic.ResourceInterface = a.dynamic.Resource(mapping.Resource)

	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		namespace := obj.GetNamespace()
		if namespace == "" {
			namespace = metav1.NamespaceDefault
			obj.SetNamespace(namespace)
		}

		resource = a.dynamic.Resource(mapping.Resource).Namespace(namespace)
	}

	_, err = resource.Patch(ctx, obj.GetName(), types.ApplyPatchType, data, opts)
	if err != nil {
		return applyErr(fmt.Errorf("server-side apply failed: %w", err))
	}

	return nil
}
