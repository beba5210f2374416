package classify

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var ErrMissingPodMetadata = errors.New("missing pod metadata")

const (
	labelTemplateHash = "pod-template-hash"
	labelComponent    = "component"
)

// PodMeta is the subset of metav1.Object the resolver needs. corev1.Pod and
// metricsv1beta1.PodMetrics satisfy it directly, MapMeta adapts raw decoded
// objects.
type PodMeta interface {
	GetName() string
	GetNamespace() string
	GetLabels() map[string]string
}

// MapMeta wraps an object decoded into a generic map, for example by
// sigs.k8s.io/yaml or an unstructured client.
type MapMeta map[string]interface{}

func (m MapMeta) metadata() map[string]interface{} {
	md, _ := m["metadata"].(map[string]interface{})
	return md
}

func (m MapMeta) GetName() string {
	s, _ := m.metadata()["name"].(string)
	return s
}

func (m MapMeta) GetNamespace() string {
	s, _ := m.metadata()["namespace"].(string)
	return s
}

func (m MapMeta) GetLabels() map[string]string {
	switch labels := m.metadata()["labels"].(type) {
	case map[string]string:
		return labels
	case map[string]interface{}:
		out := make(map[string]string, len(labels))
		for k, v := range labels {
			out[k] = fmt.Sprint(v)
		}
		return out
	default:
		return nil
	}
}

// PodResolver derives a stable logical id for a pod, free of the random
// suffixes ReplicaSets and DaemonSets append.
type PodResolver struct {
	singletons []string
}

func NewPodResolver(cfg Config) *PodResolver {
	return &PodResolver{singletons: cfg.SingletonPrefixes}
}

func (r *PodResolver) Resolve(meta PodMeta) (string, error) {
	name := meta.GetName()
	if name == "" {
		return "", errors.Wrap(ErrMissingPodMetadata, "pod has no name")
	}
	if meta.GetNamespace() == "" {
		return "", errors.Wrapf(ErrMissingPodMetadata, "pod %s has no namespace", name)
	}
	labels := meta.GetLabels()
	if len(labels) == 0 {
		return "", errors.Wrapf(ErrMissingPodMetadata, "pod %s has no labels", name)
	}

	if hash, ok := labels[labelTemplateHash]; ok && hash != "" {
		if idx := strings.Index(name, "-"+hash); idx > 0 {
			return name[:idx], nil
		}
		return name, nil
	}

	if component, ok := labels[labelComponent]; ok && component != "" {
		return component, nil
	}

	for _, prefix := range r.singletons {
		if strings.HasPrefix(name, prefix) {
			return prefix, nil
		}
	}

	return name, nil
}

// ResolvePodID resolves with the default singleton list.
func ResolvePodID(meta PodMeta) (string, error) {
	return NewPodResolver(DefaultConfig()).Resolve(meta)
}
