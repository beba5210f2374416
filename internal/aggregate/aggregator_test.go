package aggregate

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packagewjx/meshbench/internal/datasource"
	"github.com/packagewjx/meshbench/internal/usage"
	"github.com/packagewjx/meshbench/internal/utils"
)

type bufferCloser struct {
	bytes.Buffer
	closed int
}

func (b *bufferCloser) Close() error {
	b.closed++
	return nil
}

func (b *bufferCloser) records(t *testing.T) [][]string {
	records, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
	require.NoError(t, err)
	return records
}

var tick0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func metric(podID, container, namespace, node string, cpuN, memBytes int64) *datasource.ContainerMetric {
	return &datasource.ContainerMetric{
		PodID:     podID,
		Pod:       podID + "-abc",
		Container: container,
		Namespace: namespace,
		Node:      node,
		CPU:       fmt.Sprintf("%dn", cpuN),
		Memory:    fmt.Sprintf("%d", memBytes),
	}
}

// clusterTick is a small mixed cluster: app, sidecar, control plane, load,
// platform overhead and one unknown workload.
func clusterTick(scale int64) []*datasource.ContainerMetric {
	return []*datasource.ContainerMetric{
		metric("face", "face", "faces", "node-a", 20000000*scale, 30<<20),
		metric("face", "linkerd-proxy", "faces", "node-a", 5000000*scale, 10<<20),
		metric("smiley", "smiley", "faces", "node-b", 10000000*scale, 20<<20),
		metric("load", "load", "faces", "node-b", 1000000*scale, 8<<20),
		metric("linkerd-destination", "destination", "linkerd", "node-a", 2000000, 40<<20),
		metric("kube-proxy", "kube-proxy", "kube-system", "node-a", 3000000, 25<<20),
		metric("collector", "prometheus", "gmp-system", "node-b", 7000000, 90<<20),
		metric("mystery", "main", "default", "node-b", 1000000, 1<<20),
	}
}

func newAggregator(t *testing.T, out *bufferCloser, nodes ...*usage.Node) *Aggregator {
	var a *Aggregator
	var err error
	if out == nil {
		a, err = New(DefaultConfig(), nil, nodes)
	} else {
		a, err = New(DefaultConfig(), out, nodes)
	}
	require.NoError(t, err)
	return a
}

func current(t *testing.T, a *Aggregator, category, key string) (float64, float64) {
	u, ok := a.Ledger(category).Get(key)
	require.True(t, ok, "%s/%s missing", category, key)
	return u.CPU.Current, u.Memory.Current
}

func assertPartitions(t *testing.T, a *Aggregator) {
	get := func(key string) (float64, float64) {
		u, ok := a.Ledger(usage.CategorySynth).Get(key)
		if !ok {
			return 0, 0
		}
		return u.CPU.Current, u.Memory.Current
	}
	totalCPU, totalMem := get(usage.SynthTotal)
	overCPU, overMem := get(usage.SynthOverhead)
	busCPU, busMem := get(usage.SynthBusiness)
	meshCPU, meshMem := get(usage.SynthMesh)
	nonCPU, nonMem := get(usage.SynthNonMesh)

	assert.Equal(t, totalCPU, overCPU+busCPU)
	assert.Equal(t, totalMem, overMem+busMem)
	assert.Equal(t, busCPU, meshCPU+nonCPU)
	assert.Equal(t, busMem, meshMem+nonMem)
}

func TestSample_Partitions(t *testing.T) {
	a := newAggregator(t, nil)
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		metrics := clusterTick(int64(1 + rnd.Intn(20)))
		// drop a random subset so some categories come and go
		rnd.Shuffle(len(metrics), func(x, y int) { metrics[x], metrics[y] = metrics[y], metrics[x] })
		metrics = metrics[:1+rnd.Intn(len(metrics))]

		_, err := a.Sample(tick0.Add(time.Duration(i)*time.Second), metrics)
		require.NoError(t, err)
		assertPartitions(t, a)
	}
}

func TestSample_FanOut(t *testing.T) {
	a := newAggregator(t, nil)
	_, err := a.Sample(tick0, clusterTick(1))
	require.NoError(t, err)

	cpu, _ := current(t, a, usage.CategoryNormal, "faces")
	assert.Equal(t, float64(30000000), cpu)
	cpu, _ = current(t, a, usage.CategoryNormal, "load")
	assert.Equal(t, float64(1000000), cpu)
	cpu, _ = current(t, a, usage.CategoryNormal, "unknown")
	assert.Equal(t, float64(1000000), cpu)

	cpu, _ = current(t, a, usage.CategoryMesh, "data-plane")
	assert.Equal(t, float64(5000000), cpu)
	cpu, _ = current(t, a, usage.CategoryMesh, "control-plane")
	assert.Equal(t, float64(2000000), cpu)
	_, ok := a.Ledger(usage.CategoryNormal).Get("data-plane")
	assert.False(t, ok)

	cpu, _ = current(t, a, usage.CategoryOverhead, "k8s")
	assert.Equal(t, float64(3000000), cpu)
	cpu, _ = current(t, a, usage.CategoryOverhead, "gke")
	assert.Equal(t, float64(7000000), cpu)

	cpu, _ = current(t, a, usage.CategoryPod, "face app")
	assert.Equal(t, float64(20000000), cpu)
	cpu, _ = current(t, a, usage.CategoryPod, "face mesh")
	assert.Equal(t, float64(5000000), cpu)
	cpu, _ = current(t, a, usage.CategoryPod, "kube-proxy app")
	assert.Equal(t, float64(3000000), cpu)

	cpu, _ = current(t, a, usage.CategorySynth, usage.SynthTotal)
	assert.Equal(t, float64(49000000), cpu)
	cpu, _ = current(t, a, usage.CategorySynth, usage.SynthOverhead)
	assert.Equal(t, float64(10000000), cpu)
	cpu, _ = current(t, a, usage.CategorySynth, usage.SynthMesh)
	assert.Equal(t, float64(7000000), cpu)
	assertPartitions(t, a)
}

func TestLifecycle(t *testing.T) {
	a := newAggregator(t, nil)
	assert.Equal(t, Starting, a.State())

	require.NoError(t, a.StartCollecting())
	assert.Equal(t, Running, a.State())
	assert.True(t, a.IsCollecting())

	err := a.StartCollecting()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	require.NoError(t, a.StartDraining())
	assert.Equal(t, Draining, a.State())
	assert.True(t, errors.Is(a.StartCollecting(), ErrInvalidTransition))
	assert.True(t, errors.Is(a.StartDraining(), ErrInvalidTransition))

	require.NoError(t, a.StopCollecting())
	assert.Equal(t, Finishing, a.State())
	assert.False(t, a.IsCollecting())
	assert.True(t, errors.Is(a.StartCollecting(), ErrInvalidTransition))
	assert.True(t, errors.Is(a.StopCollecting(), ErrInvalidTransition))
}

func TestLifecycle_DrainRequiresRunning(t *testing.T) {
	a := newAggregator(t, nil)
	assert.True(t, errors.Is(a.StartDraining(), ErrInvalidTransition))
	assert.Equal(t, Starting, a.State())
}

func TestIdleStartsCollection(t *testing.T) {
	out := &bufferCloser{}
	a := newAggregator(t, out)

	busy := []*datasource.ContainerMetric{metric("face", "face", "faces", "", 500000000, 100<<20)}
	_, err := a.Sample(tick0, busy)
	require.NoError(t, err)
	assert.False(t, a.IsIdle())
	assert.False(t, a.IsCollecting())
	assert.Len(t, out.records(t), 1)

	idle := []*datasource.ContainerMetric{metric("face", "face", "faces", "", 50000000, 100*1048576)}
	s, err := a.Sample(tick0.Add(time.Second), idle)
	require.NoError(t, err)
	assert.True(t, a.IsIdle())
	assert.True(t, a.IsCollecting())
	assert.Equal(t, Running, a.State())
	assert.Equal(t, Running, s.State)

	records := out.records(t)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-05-01 12:00:01", records[1][0])
}

func TestIdle_ThresholdsAreStrict(t *testing.T) {
	a := newAggregator(t, nil)
	atCPU := []*datasource.ContainerMetric{metric("face", "face", "faces", "", 100000000, 1<<20)}
	_, err := a.Sample(tick0, atCPU)
	require.NoError(t, err)
	assert.False(t, a.IsIdle())

	atMem := []*datasource.ContainerMetric{metric("face", "face", "faces", "", 1, 160*1048576)}
	_, err = a.Sample(tick0, atMem)
	require.NoError(t, err)
	assert.False(t, a.IsIdle())
	assert.Equal(t, Starting, a.State())
}

func TestIdle_TrackedAbsentKeepsFlag(t *testing.T) {
	a := newAggregator(t, nil)
	_, err := a.Sample(tick0, []*datasource.ContainerMetric{metric("face", "face", "faces", "", 1, 1)})
	require.NoError(t, err)
	require.True(t, a.IsIdle())
	require.NoError(t, a.StartDraining())
	require.NoError(t, a.StopCollecting())

	// not collecting any more, so the ledgers are rebuilt without faces
	_, err = a.Sample(tick0, []*datasource.ContainerMetric{metric("kube-proxy", "kube-proxy", "kube-system", "", 1, 1)})
	require.NoError(t, err)
	_, ok := a.Ledger(usage.CategoryNormal).Get("faces")
	require.False(t, ok)
	assert.True(t, a.IsIdle())

	_, err = a.Sample(tick0, []*datasource.ContainerMetric{metric("face", "face", "faces", "", 900000000, 1)})
	require.NoError(t, err)
	assert.False(t, a.IsIdle())
}

func TestNoAutoStartAfterFinish(t *testing.T) {
	out := &bufferCloser{}
	a := newAggregator(t, out)
	idle := []*datasource.ContainerMetric{metric("face", "face", "faces", "", 1, 1)}

	_, err := a.Sample(tick0, idle)
	require.NoError(t, err)
	require.NoError(t, a.StartDraining())
	require.NoError(t, a.StopCollecting())
	assert.Equal(t, 1, out.closed)
	written := out.Len()

	s, err := a.Sample(tick0.Add(time.Second), idle)
	require.NoError(t, err)
	assert.Equal(t, Finishing, s.State)
	assert.False(t, a.IsCollecting())
	assert.Equal(t, written, out.Len())
	assert.Equal(t, 1, out.closed)
}

func TestCSVRoundTrip(t *testing.T) {
	out := &bufferCloser{}
	nodes := []*usage.Node{
		{Name: "node-a", AllocatableCPU: 4000000000, AllocatableMemory: 8 << 30},
		{Name: "node-b", AllocatableCPU: 4000000000, AllocatableMemory: 8 << 30},
	}
	a := newAggregator(t, out, nodes...)
	header := a.FieldNames()

	records := out.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, header, records[0])
	assert.Equal(t, "timestamp", header[0])
	assert.Contains(t, header, "faces CPU")
	assert.Contains(t, header, "ztunnel mesh mem")
	assert.Equal(t, []string{"node node-b CPU", "node node-b mem"}, header[len(header)-2:])

	require.NoError(t, a.StartCollecting())
	for i := 0; i < 3; i++ {
		_, err := a.Sample(tick0.Add(time.Duration(i)*time.Second), clusterTick(int64(i+1)))
		require.NoError(t, err)
	}
	require.NoError(t, a.StopCollecting())

	records = out.records(t)
	require.Len(t, records, 4)
	col := map[string]int{}
	for i, h := range records[0] {
		col[h] = i
	}
	for _, row := range records[1:] {
		assert.Len(t, row, len(header))
	}

	last := records[3]
	assert.Equal(t, "90000000", last[col["faces CPU"]])
	assert.Equal(t, "60000000", last[col["face app CPU"]])
	assert.Equal(t, "15000000", last[col["face mesh CPU"]])
	assert.Equal(t, "0", last[col["iperf CPU"]])
	assert.Equal(t, "0", last[col["ztunnel mesh CPU"]])
	// node-a: face 60M + sidecar 15M + destination 2M + kube-proxy 3M
	assert.Equal(t, "80000000", last[col["node node-a CPU"]])
}

func TestSample_ParseErrorLeavesState(t *testing.T) {
	a := newAggregator(t, nil)
	require.NoError(t, a.StartCollecting())
	_, err := a.Sample(tick0, clusterTick(1))
	require.NoError(t, err)
	before, _ := current(t, a, usage.CategorySynth, usage.SynthTotal)

	bad := clusterTick(5)
	bad[3].CPU = "12q"
	_, err = a.Sample(tick0.Add(time.Second), bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInvalidQuantity))
	assert.Contains(t, err.Error(), "12q")

	after, _ := current(t, a, usage.CategorySynth, usage.SynthTotal)
	assert.Equal(t, before, after)
}

func TestSample_ReinitBeforeCollecting(t *testing.T) {
	a := newAggregator(t, nil)
	_, err := a.Sample(tick0, clusterTick(10))
	require.NoError(t, err)
	_, ok := a.Ledger(usage.CategoryOverhead).Get("gke")
	require.True(t, ok)

	_, err = a.Sample(tick0, []*datasource.ContainerMetric{metric("face", "face", "faces", "", 500000000, 1)})
	require.NoError(t, err)
	_, ok = a.Ledger(usage.CategoryOverhead).Get("gke")
	assert.False(t, ok)

	u, _ := a.Ledger(usage.CategoryNormal).Get("faces")
	assert.Equal(t, float64(500000000), *u.CPU.Max)
	assert.Equal(t, float64(500000000), *u.CPU.Min)
}

func TestSample_HistoryWhileCollecting(t *testing.T) {
	a := newAggregator(t, nil)
	require.NoError(t, a.StartCollecting())

	_, err := a.Sample(tick0, clusterTick(10))
	require.NoError(t, err)
	_, err = a.Sample(tick0, []*datasource.ContainerMetric{metric("face", "face", "faces", "", 1000000, 1)})
	require.NoError(t, err)

	gke, ok := a.Ledger(usage.CategoryOverhead).Get("gke")
	require.True(t, ok)
	assert.Equal(t, float64(0), gke.CPU.Current)
	assert.Equal(t, float64(0), *gke.CPU.Min)
	assert.Equal(t, float64(7000000), *gke.CPU.Max)

	faces, _ := a.Ledger(usage.CategoryNormal).Get("faces")
	assert.Equal(t, float64(1000000), *faces.CPU.Min)
	assert.Equal(t, float64(300000000), *faces.CPU.Max)
}

func TestItemsOrder(t *testing.T) {
	a := newAggregator(t, nil)
	_, err := a.Sample(tick0, clusterTick(1))
	require.NoError(t, err)

	var got []string
	for _, item := range a.Items() {
		if item.IsSeparator() {
			got = append(got, "")
			continue
		}
		got = append(got, item.Category+":"+item.Key)
	}

	assert.Equal(t, []string{
		"normal:unknown", "normal:faces", "normal:load",
		"",
		"overhead:gke", "overhead:k8s",
		"",
		"mesh:data-plane", "mesh:control-plane",
		"synth:mesh", "synth:non-mesh", "synth:business", "", "synth:overhead", "synth:total",
		"",
		"pod:collector app", "pod:face app", "pod:face mesh", "pod:kube-proxy app",
		"pod:linkerd-destination mesh", "pod:load app", "pod:mystery app", "pod:smiley app",
	}, got)
}

func TestItems_CanonicalSynthAlwaysPresent(t *testing.T) {
	a := newAggregator(t, nil)
	_, err := a.Sample(tick0, []*datasource.ContainerMetric{metric("face", "face", "faces", "", 1, 1)})
	require.NoError(t, err)

	found := map[string]*usage.Usage{}
	for _, item := range a.Items() {
		if item.Category == usage.CategorySynth {
			found[item.Key] = item.Usage
		}
	}
	require.Contains(t, found, usage.SynthMesh)
	require.Contains(t, found, usage.SynthOverhead)
	assert.Equal(t, float64(0), found[usage.SynthMesh].CPU.Current)
	assert.Equal(t, float64(0), found[usage.SynthOverhead].Memory.Current)
}

func TestSummary_Ratios(t *testing.T) {
	a := newAggregator(t, nil)
	s, err := a.Sample(tick0, clusterTick(1))
	require.NoError(t, err)

	require.Len(t, s.Ratios, 2)
	mesh := s.Ratios[0]
	// mesh 7M against non-mesh 32M; mesh CPU is below the noise floor
	assert.False(t, mesh.CPUValid)
	assert.True(t, mesh.MemoryValid)
	assert.InDelta(t, float64(50<<20)/float64(59<<20)*100, mesh.Memory, 1e-9)

	s, err = a.Sample(tick0, clusterTick(4))
	require.NoError(t, err)
	dp := s.Ratios[1]
	assert.True(t, dp.CPUValid)
	assert.InDelta(t, 20.0/125.0*100, dp.CPU, 1e-9)
}

func TestSummary_IsSnapshot(t *testing.T) {
	a := newAggregator(t, nil)
	require.NoError(t, a.StartCollecting())
	s1, err := a.Sample(tick0, clusterTick(1))
	require.NoError(t, err)
	_, err = a.Sample(tick0, clusterTick(3))
	require.NoError(t, err)

	for _, item := range s1.Items {
		if item.Category == usage.CategoryNormal && item.Key == "faces" {
			assert.Equal(t, float64(30000000), item.Usage.CPU.Current)
			return
		}
	}
	t.Fatal("faces item missing")
}
