package aggregate

import (
	"time"

	"github.com/packagewjx/meshbench/internal/usage"
	"github.com/packagewjx/meshbench/pkg/core"
)

// Below these a ratio is noise: 0.01 cores and 0.01 MiB.
const (
	ratioMinCPU    = 10000000
	ratioMinMemory = 10485
)

// Ratio compares two ledger entries as percentages. A side that is missing or
// below the noise floor leaves the ratio invalid.
type Ratio struct {
	Name        string
	CPU         float64
	Memory      float64
	CPUValid    bool
	MemoryValid bool
}

type NodeSummary struct {
	Name           string
	Assigned       usage.Usage
	CPUFraction    float64
	MemoryFraction float64
}

// Summary is a copy of one tick's state, safe to hold after the next tick.
type Summary struct {
	Time       time.Time
	State      State
	Path       string
	Idle       bool
	Collecting bool
	Items      []Item
	Nodes      []NodeSummary
	Ratios     []Ratio
}

func copyUsage(u *usage.Usage) *usage.Usage {
	out := &usage.Usage{CPU: copyValue(u.CPU), Memory: copyValue(u.Memory)}
	return out
}

func copyValue(v usage.Value) usage.Value {
	out := usage.Value{Current: v.Current}
	if v.Min != nil {
		lo := *v.Min
		out.Min = &lo
	}
	if v.Max != nil {
		hi := *v.Max
		out.Max = &hi
	}
	return out
}

func (a *Aggregator) summarize(now time.Time, items []Item) *Summary {
	s := &Summary{
		Time:       now,
		State:      a.state,
		Path:       a.cfg.Path,
		Idle:       a.idle,
		Collecting: a.collecting,
		Items:      make([]Item, len(items)),
	}
	for i, item := range items {
		if item.IsSeparator() {
			continue
		}
		s.Items[i] = Item{Category: item.Category, Key: item.Key, Usage: copyUsage(item.Usage)}
	}
	for _, n := range a.nodes {
		s.Nodes = append(s.Nodes, NodeSummary{
			Name:           n.Name,
			Assigned:       *copyUsage(&n.Assigned),
			CPUFraction:    n.CPUFraction(),
			MemoryFraction: n.MemoryFraction(),
		})
	}

	nonMesh, _ := a.ledgers[usage.CategorySynth].Get(usage.SynthNonMesh)
	meshTotal, _ := a.ledgers[usage.CategorySynth].Get(usage.SynthMesh)
	dataPlane, _ := a.ledgers[usage.CategoryMesh].Get(core.ComponentDataPlane)
	s.Ratios = []Ratio{
		ratio("Mesh", meshTotal, nonMesh),
		ratio("Data plane", dataPlane, nonMesh),
	}
	return s
}

func ratio(name string, num, den *usage.Usage) Ratio {
	r := Ratio{Name: name}
	if num == nil || den == nil {
		return r
	}
	if num.CPU.Current >= ratioMinCPU && den.CPU.Current >= ratioMinCPU {
		r.CPU = num.CPU.Current / den.CPU.Current * 100
		r.CPUValid = true
	}
	if num.Memory.Current >= ratioMinMemory && den.Memory.Current >= ratioMinMemory {
		r.Memory = num.Memory.Current / den.Memory.Current * 100
		r.MemoryValid = true
	}
	return r
}
