package aggregate

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/classify"
	"github.com/packagewjx/meshbench/internal/usage"
	"github.com/packagewjx/meshbench/pkg/core"
)

var ledgerCategories = []string{
	usage.CategoryNormal,
	usage.CategoryOverhead,
	usage.CategoryMesh,
	usage.CategoryPod,
	usage.CategorySynth,
}

// Aggregator classifies per-tick container usage into ledgers and persists one
// CSV row per tick while collecting. Ticks must not overlap.
type Aggregator struct {
	cfg        Config
	classifier *classify.Classifier

	out    io.WriteCloser
	writer *csv.Writer

	fields     []string
	fieldIndex map[string]int

	nodes     []*usage.Node
	nodeIndex map[string]*usage.Node

	ledgers    map[string]*usage.Ledger
	state      State
	collecting bool
	idle       bool
}

// New computes the column set and, when out is non-nil, writes the header
// immediately. The aggregator owns out and closes it in StopCollecting.
func New(cfg Config, out io.WriteCloser, nodes []*usage.Node) (*Aggregator, error) {
	a := &Aggregator{
		cfg:        cfg,
		classifier: classify.NewClassifier(cfg.Classify),
		out:        out,
		nodes:      nodes,
		nodeIndex:  make(map[string]*usage.Node, len(nodes)),
		state:      Starting,
	}

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		a.nodeIndex[n.Name] = n
		names = append(names, n.Name)
	}
	a.fields = buildFieldNames(cfg, names)
	a.fieldIndex = make(map[string]int, len(a.fields))
	for i, f := range a.fields {
		a.fieldIndex[f] = i
	}
	a.reinit()

	if out != nil {
		a.writer = csv.NewWriter(out)
		if err := a.writer.Write(a.fields); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
		a.writer.Flush()
		if err := a.writer.Error(); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
	}
	return a, nil
}

func (a *Aggregator) reinit() {
	a.ledgers = make(map[string]*usage.Ledger, len(ledgerCategories))
	for _, c := range ledgerCategories {
		a.ledgers[c] = usage.NewLedger()
	}
	for _, n := range a.nodes {
		n.Assigned = usage.Usage{}
	}
}

func (a *Aggregator) zero() {
	for _, l := range a.ledgers {
		l.Zero()
	}
	for _, n := range a.nodes {
		n.Assigned.Zero()
	}
}

func (a *Aggregator) update() {
	for _, l := range a.ledgers {
		l.Update()
	}
	for _, n := range a.nodes {
		n.Assigned.Update()
	}
}

func (a *Aggregator) add(podID string, cls core.Classification, cpu, memory float64) {
	if cls.Mesh {
		a.ledgers[usage.CategoryPod].Add(podID+" mesh", cpu, memory)
	} else {
		a.ledgers[usage.CategoryPod].Add(podID+" app", cpu, memory)
	}

	synth := a.ledgers[usage.CategorySynth]
	switch {
	case cls.Overhead:
		a.ledgers[usage.CategoryOverhead].Add(cls.Component, cpu, memory)
		synth.Add(usage.SynthOverhead, cpu, memory)
	case cls.Mesh:
		a.ledgers[usage.CategoryMesh].Add(cls.Component, cpu, memory)
		synth.Add(usage.SynthBusiness, cpu, memory)
		synth.Add(usage.SynthMesh, cpu, memory)
	default:
		a.ledgers[usage.CategoryNormal].Add(cls.Component, cpu, memory)
		synth.Add(usage.SynthBusiness, cpu, memory)
		synth.Add(usage.SynthNonMesh, cpu, memory)
	}

	synth.Add(usage.SynthTotal, cpu, memory)
}

// Ledger returns the ledger for one of the usage.Category* names.
func (a *Aggregator) Ledger(category string) *usage.Ledger {
	return a.ledgers[category]
}

func (a *Aggregator) FieldNames() []string {
	out := make([]string, len(a.fields))
	copy(out, a.fields)
	return out
}

func (a *Aggregator) State() State {
	return a.state
}

func (a *Aggregator) IsCollecting() bool {
	return a.collecting
}

func (a *Aggregator) IsIdle() bool {
	return a.idle
}

func (a *Aggregator) Nodes() []*usage.Node {
	return a.nodes
}

// StartCollecting begins persisting rows. It is only valid once, from Starting.
func (a *Aggregator) StartCollecting() error {
	if a.state != Starting {
		return errors.Wrapf(ErrInvalidTransition, "start collecting from %s", a.state)
	}
	a.collecting = true
	a.state = Running
	klog.Infof("started collecting %s", a.cfg.Path)
	return nil
}

// StartDraining marks the benchmark workload as finished. Rows are still
// persisted until StopCollecting.
func (a *Aggregator) StartDraining() error {
	if a.state != Running {
		return errors.Wrapf(ErrInvalidTransition, "start draining from %s", a.state)
	}
	a.state = Draining
	klog.V(1).Infof("draining %s", a.cfg.Path)
	return nil
}

// StopCollecting closes the output. Later ticks are aggregated but never
// written.
func (a *Aggregator) StopCollecting() error {
	if a.state == Finishing {
		return errors.Wrap(ErrInvalidTransition, "already finished")
	}
	a.collecting = false
	a.state = Finishing

	if a.out == nil {
		return nil
	}
	a.writer.Flush()
	werr := a.writer.Error()
	cerr := a.out.Close()
	a.out, a.writer = nil, nil
	if werr != nil {
		return errors.Wrap(werr, "flushing output")
	}
	if cerr != nil {
		return errors.Wrap(cerr, "closing output")
	}
	klog.Infof("stopped collecting %s", a.cfg.Path)
	return nil
}
