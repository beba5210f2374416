package classify

import (
	"github.com/packagewjx/meshbench/pkg/core"
)

type key struct {
	prefix    string
	container string
	namespace string
}

type rule struct {
	match func(k key) bool
	build func(k key) core.Classification
}

// Classifier maps (workload prefix, container, namespace) to a Classification.
// Results are cached for the lifetime of the instance. Not safe for concurrent
// use.
type Classifier struct {
	rules []rule
	cache map[key]core.Classification
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		rules: buildRules(cfg),
		cache: make(map[key]core.Classification),
	}
}

// buildRules returns the rules in priority order. The first match wins; the
// lists overlap (a sidecar in the app namespace, a load generator with a
// sidecar), so the order matters.
func buildRules(cfg Config) []rule {
	byPrefix := func(k key) string { return k.prefix }
	byContainer := func(k key) string { return k.container }

	return []rule{
		{
			match: func(k key) bool { return k.namespace == cfg.MeshControlNamespace },
			build: func(k key) core.Classification { return core.ControlPlane(byPrefix(k)) },
		},
		{
			match: func(k key) bool { return contains(cfg.SidecarContainers, k.container) },
			build: func(k key) core.Classification { return core.DataPlane(byContainer(k)) },
		},
		{
			match: func(k key) bool { return contains(cfg.MeshWorkloads, k.prefix) },
			build: func(k key) core.Classification { return core.DataPlane(byPrefix(k)) },
		},
		{
			match: func(k key) bool { return contains(cfg.TrafficClients, k.prefix) },
			build: func(k key) core.Classification { return core.Iperf(byPrefix(k)) },
		},
		{
			match: func(k key) bool { return contains(cfg.LoadGenerators, k.prefix) },
			build: func(k key) core.Classification { return core.Load(byPrefix(k)) },
		},
		{
			match: func(k key) bool { return k.namespace == cfg.AppNamespace },
			build: func(k key) core.Classification { return core.Faces(byPrefix(k)) },
		},
		{
			match: func(k key) bool { return contains(cfg.MeshSystemNamespaces, k.namespace) },
			build: func(k key) core.Classification { return core.ControlPlane(byPrefix(k)) },
		},
		{
			match: func(k key) bool { return contains(cfg.PlatformNamespaces, k.namespace) },
			build: func(k key) core.Classification { return core.GKE(byPrefix(k)) },
		},
		{
			match: func(k key) bool { return contains(cfg.KubeNamespaces, k.namespace) },
			build: func(k key) core.Classification { return core.K8s(byPrefix(k)) },
		},
	}
}

// Classify never fails; anything no rule matches is core.ComponentUnknown.
func (c *Classifier) Classify(prefix, container, namespace string) core.Classification {
	k := key{prefix: prefix, container: container, namespace: namespace}
	if cls, ok := c.cache[k]; ok {
		return cls
	}

	cls := core.Unknown(prefix)
	for _, r := range c.rules {
		if r.match(k) {
			cls = r.build(k)
			break
		}
	}
	c.cache[k] = cls
	return cls
}

// CacheSize is the number of distinct inputs classified so far.
func (c *Classifier) CacheSize() int {
	return len(c.cache)
}
