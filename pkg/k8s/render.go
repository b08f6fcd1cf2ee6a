package k8s

import (
	"bytes"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"
)

// ToUnstructured converts obj for the dynamic client. Typed objects must carry
// their TypeMeta. Empty status and null creation timestamps are dropped so the
// applied intent only contains fields this tool sets.
func ToUnstructured(obj runtime.Object) (*unstructured.Unstructured, error) {
	if u, ok := obj.(*unstructured.Unstructured); ok {
		return u.DeepCopy(), nil
	}

	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("convert %T to unstructured: %w", obj, err)
	}

	converted := &unstructured.Unstructured{Object: content}
	if converted.GetKind() == "" {
		return nil, fmt.Errorf("%w: %T", ErrObjectWithoutKind, obj)
	}

	pruneNullTimestamps(converted.Object)

	if status, found, _ := unstructured.NestedMap(converted.Object, "status"); found && len(status) == 0 {
		unstructured.RemoveNestedField(converted.Object, "status")
	}

	return converted, nil
}

func pruneNullTimestamps(node map[string]any) {
	for key, value := range node {
		switch typed := value.(type) {
		case nil:
			if key == "creationTimestamp" {
				delete(node, key)
			}
		case map[string]any:
			pruneNullTimestamps(typed)
		case []any:
			for _, item := range typed {
				if child, ok := item.(map[string]any); ok {
					pruneNullTimestamps(child)
				}
			}
		}
	}
}

// RenderYAML renders objs as a single multi-document YAML manifest.
func RenderYAML(objs ...runtime.Object) ([]byte, error) {
	var buf bytes.Buffer

	for i, obj := range objs {
		converted, err := ToUnstructured(obj)
		if err != nil {
			return nil, err
		}

		doc, err := yaml.Marshal(converted.Object)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", converted.GetKind(), converted.GetName(), err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}

		buf.Write(doc)
	}

	return buf.Bytes(), nil
}
