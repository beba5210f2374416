package classify

// Config names the namespaces and workloads the classifier recognises. Every
// list is matched exactly.
type Config struct {
	MeshControlNamespace string   `mapstructure:"meshControlNamespace"`
	SidecarContainers    []string `mapstructure:"sidecars"`
	MeshWorkloads        []string `mapstructure:"meshWorkloads"`
	TrafficClients       []string `mapstructure:"trafficClients"`
	LoadGenerators       []string `mapstructure:"loadGenerators"`
	AppNamespace         string   `mapstructure:"appNamespace"`
	MeshSystemNamespaces []string `mapstructure:"meshSystemNamespaces"`
	PlatformNamespaces   []string `mapstructure:"platformNamespaces"`
	KubeNamespaces       []string `mapstructure:"kubeNamespaces"`
	// SingletonPrefixes are workloads that run without a ReplicaSet hash, so
	// their pod names only share a prefix.
	SingletonPrefixes []string `mapstructure:"singletons"`
}

func DefaultConfig() Config {
	return Config{
		MeshControlNamespace: "linkerd",
		SidecarContainers:    []string{"linkerd-proxy", "istio-proxy"},
		MeshWorkloads:        []string{"waypoint", "ztunnel"},
		TrafficClients:       []string{"iperf", "iperf-client"},
		LoadGenerators:       []string{"load", "wrk2", "oha"},
		AppNamespace:         "faces",
		MeshSystemNamespaces: []string{"istio-system"},
		PlatformNamespaces: []string{
			"gke-managed-cim",
			"gke-managed-system",
			"gke-managed-volumepopulator",
			"gmp-public",
			"gmp-system",
		},
		KubeNamespaces:    []string{"kube-node-lease", "kube-public", "kube-system"},
		SingletonPrefixes: []string{"pdcsi-node", "kube-proxy", "collector", "ztunnel", "oha", "wrk2"},
	}
}

// IsSidecar reports whether container is an injected mesh proxy.
func (c Config) IsSidecar(container string) bool {
	return contains(c.SidecarContainers, container)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
