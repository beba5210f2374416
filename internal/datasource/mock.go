package datasource

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/packagewjx/meshbench/internal/usage"
)

type mockPod struct {
	id, pod, namespace, node string
	containers               []string
	// busy and idle usage per container, in millicores and MiB
	busyCPU, idleCPU int
	busyMem, idleMem int
}

// Mock is a canned faces cluster for running without a cluster. It reports
// idle usage until SetBusy(true) and busy usage afterwards, with some noise.
type Mock struct {
	mu   sync.Mutex
	busy bool
	rnd  *rand.Rand
	pods []mockPod
}

func NewMock(seed int64) *Mock {
	return &Mock{
		rnd: rand.New(rand.NewSource(seed)),
		pods: []mockPod{
			{"face", "face-6f9c8d7b5-k2x8q", "faces", "node-a", []string{"face", "linkerd-proxy"}, 300, 20, 60, 40},
			{"smiley", "smiley-7c4d9f8b6-p9z2m", "faces", "node-a", []string{"smiley", "linkerd-proxy"}, 150, 10, 40, 30},
			{"color", "color-5b8f7c6d4-w3v7n", "faces", "node-b", []string{"color", "linkerd-proxy"}, 150, 10, 40, 30},
			{"faces-gui", "faces-gui-8d6b5c4f3-h4j5k", "faces", "node-b", []string{"faces-gui", "linkerd-proxy"}, 5, 2, 20, 20},
			{"load", "load-x7k2p", "faces", "node-c", []string{"load"}, 600, 0, 80, 8},
			{"linkerd-destination", "linkerd-destination-6d8f7b9c5-q2w3e", "linkerd", "node-a", []string{"destination", "linkerd-proxy"}, 20, 5, 60, 50},
			{"linkerd-identity", "linkerd-identity-5c7b6d8f4-r4t5y", "linkerd", "node-b", []string{"identity", "linkerd-proxy"}, 3, 2, 30, 30},
			{"kube-proxy", "kube-proxy-node-a", "kube-system", "node-a", []string{"kube-proxy"}, 10, 5, 25, 25},
			{"collector", "collector-9fz8x", "gmp-system", "node-b", []string{"prometheus"}, 30, 20, 120, 110},
		},
	}
}

func (m *Mock) SetBusy(busy bool) {
	m.mu.Lock()
	m.busy = busy
	m.mu.Unlock()
}

func (m *Mock) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func (m *Mock) Snapshot(ctx context.Context) ([]*ContainerMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ContainerMetric, 0, 2*len(m.pods))
	for _, p := range m.pods {
		cpu, mem := p.idleCPU, p.idleMem
		if m.busy {
			cpu, mem = p.busyCPU, p.busyMem
		}
		for i, c := range p.containers {
			// sidecars get a third of the app container's share
			div := 1
			if i > 0 {
				div = 3
			}
			cpuN := int64(cpu) * 1000000 / int64(div)
			cpuN += int64(m.rnd.Intn(1000000))
			memKi := int64(mem) * 1024 / int64(div)
			memKi += int64(m.rnd.Intn(512))
			out = append(out, &ContainerMetric{
				PodID:     p.id,
				Pod:       p.pod,
				Container: c,
				Namespace: p.namespace,
				Node:      p.node,
				CPU:       fmt.Sprintf("%dn", cpuN),
				Memory:    fmt.Sprintf("%dKi", memKi),
			})
		}
	}
	return out, nil
}

func (m *Mock) Nodes(ctx context.Context) ([]*usage.Node, error) {
	names := []string{"node-a", "node-b", "node-c"}
	out := make([]*usage.Node, 0, len(names))
	for _, n := range names {
		out = append(out, &usage.Node{
			Name:              n,
			AllocatableCPU:    3920 * 1000000,
			AllocatableMemory: 13 << 30,
		})
	}
	return out, nil
}

var (
	_ MetricDataSource = &Mock{}
	_ NodeSource       = &Mock{}
)
