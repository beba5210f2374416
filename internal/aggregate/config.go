package aggregate

import (
	"github.com/packagewjx/meshbench/internal/classify"
)

type Config struct {
	Classify classify.Config

	// Tracked is the normal-ledger key whose usage decides when the cluster
	// has settled and collection can begin.
	Tracked          string
	IdleCPUNanocores float64
	IdleMemoryBytes  float64

	// Categories and Pods are the ledger keys written as CSV columns, each as
	// "<key> CPU" and "<key> mem". Keys seen at runtime but not listed here
	// are shown on the display only.
	Categories []string
	Pods       []string

	// Path is shown in the summary header; the aggregator never opens it.
	Path string
}

func DefaultConfig() Config {
	return Config{
		Classify:         classify.DefaultConfig(),
		Tracked:          "faces",
		IdleCPUNanocores: 100000000,
		IdleMemoryBytes:  160 * 1048576,
		Categories: []string{
			"faces", "load", "iperf", "gke", "k8s",
			"data-plane", "control-plane", "mesh", "non-mesh",
			"business", "overhead", "total",
		},
		Pods: []string{
			"load app", "load mesh", "wrk2 app", "wrk2 mesh",
			"iperf app", "iperf mesh", "iperf-client app", "iperf-client mesh",
			"faces-gui app", "faces-gui mesh", "face app", "face mesh",
			"smiley app", "smiley mesh", "smiley2 app", "smiley2 mesh",
			"smiley3 app", "smiley3 mesh", "color app", "color mesh",
			"color2 app", "color2 mesh", "color3 app", "color3 mesh",
			"linkerd-destination mesh", "linkerd-identity mesh",
			"linkerd-proxy-injector mesh",
			"istiod mesh", "istio-ingressgateway mesh", "waypoint mesh",
			"ztunnel mesh",
		},
	}
}

const (
	FieldTimestamp  = "timestamp"
	TimestampLayout = "2006-01-02 15:04:05"
)

func CPUField(key string) string {
	return key + " CPU"
}

func MemoryField(key string) string {
	return key + " mem"
}

func NodeKey(name string) string {
	return "node " + name
}

// buildFieldNames returns the CSV header: timestamp, the configured category
// and pod keys, then one pair per node.
func buildFieldNames(cfg Config, nodes []string) []string {
	fields := []string{FieldTimestamp}
	for _, group := range [][]string{cfg.Categories, cfg.Pods} {
		for _, key := range group {
			fields = append(fields, CPUField(key), MemoryField(key))
		}
	}
	for _, n := range nodes {
		fields = append(fields, CPUField(NodeKey(n)), MemoryField(NodeKey(n)))
	}
	return fields
}
