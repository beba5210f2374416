package aggregate

import (
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/datasource"
	"github.com/packagewjx/meshbench/internal/usage"
	"github.com/packagewjx/meshbench/internal/utils"
)

type parsedMetric struct {
	*datasource.ContainerMetric
	cpu    float64
	memory float64
}

func (a *Aggregator) parse(metrics []*datasource.ContainerMetric) ([]parsedMetric, error) {
	out := make([]parsedMetric, 0, len(metrics))
	for _, m := range metrics {
		cpu, err := utils.ParseNanocores(m.CPU)
		if err != nil {
			return nil, errors.Wrapf(err, "container %s/%s/%s", m.Namespace, m.Pod, m.Container)
		}
		mem, err := utils.ParseBytes(m.Memory)
		if err != nil {
			return nil, errors.Wrapf(err, "container %s/%s/%s", m.Namespace, m.Pod, m.Container)
		}
		out = append(out, parsedMetric{ContainerMetric: m, cpu: float64(cpu), memory: float64(mem)})
	}

	// sidecars sort after the app container of the same pod
	sort.SliceStable(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if x.Namespace != y.Namespace {
			return x.Namespace < y.Namespace
		}
		if x.Pod != y.Pod {
			return x.Pod < y.Pod
		}
		xs, ys := a.cfg.Classify.IsSidecar(x.Container), a.cfg.Classify.IsSidecar(y.Container)
		if xs != ys {
			return ys
		}
		return x.Container < y.Container
	})
	return out, nil
}

// Sample runs one tick. Every entry is parsed before any ledger changes, so a
// malformed quantity leaves the aggregator as it was. Until collection starts
// the ledgers are rebuilt from scratch on every tick. Collection starts at
// most once: after StopCollecting, idle ticks are aggregated and summarized
// but neither restart collection nor write rows.
func (a *Aggregator) Sample(now time.Time, metrics []*datasource.ContainerMetric) (*Summary, error) {
	parsed, err := a.parse(metrics)
	if err != nil {
		return nil, err
	}

	if !a.collecting {
		a.reinit()
	}
	a.zero()

	for _, m := range parsed {
		cls := a.classifier.Classify(m.PodID, m.Container, m.Namespace)
		a.add(m.PodID, cls, m.cpu, m.memory)
		if n, ok := a.nodeIndex[m.Node]; ok {
			n.Assigned.Add(m.cpu, m.memory)
		}
	}
	a.update()

	items := a.Items()
	row := make([]string, len(a.fields))
	for i := range row {
		row[i] = "0"
	}
	row[0] = now.Format(TimestampLayout)

	for _, item := range items {
		if item.IsSeparator() {
			continue
		}
		a.setField(row, CPUField(item.Key), item.Usage.CPU.Current)
		a.setField(row, MemoryField(item.Key), item.Usage.Memory.Current)
	}
	for _, n := range a.nodes {
		a.setField(row, CPUField(NodeKey(n.Name)), n.Assigned.CPU.Current)
		a.setField(row, MemoryField(NodeKey(n.Name)), n.Assigned.Memory.Current)
	}

	if tracked, ok := a.ledgers[usage.CategoryNormal].Get(a.cfg.Tracked); ok {
		a.idle = tracked.CPU.Current < a.cfg.IdleCPUNanocores &&
			tracked.Memory.Current < a.cfg.IdleMemoryBytes
	}

	if a.idle && !a.collecting && a.state == Starting {
		if err := a.StartCollecting(); err != nil {
			return nil, err
		}
	}

	if a.collecting && a.writer != nil {
		if err := a.writer.Write(row); err != nil {
			return nil, errors.Wrap(err, "writing row")
		}
		a.writer.Flush()
		if err := a.writer.Error(); err != nil {
			return nil, errors.Wrap(err, "flushing row")
		}
	}

	klog.V(2).Infof("tick %s state=%s idle=%t containers=%d", row[0], a.state, a.idle, len(parsed))
	return a.summarize(now, items), nil
}

func (a *Aggregator) setField(row []string, field string, v float64) {
	if i, ok := a.fieldIndex[field]; ok {
		row[i] = strconv.FormatInt(int64(v), 10)
	}
}
