package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/aggregate"
	"github.com/packagewjx/meshbench/internal/classify"
	"github.com/packagewjx/meshbench/internal/datasource"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultTailSamples = 6
	DefaultWorkers     = 1
	DefaultDuration    = "1800s"
)

// RunConfig describes one benchmark run at a single rate.
type RunConfig struct {
	OutDir   string
	Rate     int
	Seq      int
	Duration string
	Workers  int
	Affinity bool
}

// MetricsPath is where a run's aggregate CSV is written.
func (rc RunConfig) MetricsPath() string {
	return filepath.Join(rc.OutDir, fmt.Sprintf("%d-%d-metrics.csv", rc.Rate, rc.Seq))
}

// Runner drives the aggregator through one load test: wait for the cluster
// to settle, run the load job, then drain until usage falls back to idle.
type Runner struct {
	Source    datasource.MetricDataSource
	NodeInfo  datasource.NodeSource
	Jobs      JobController
	Aggregate aggregate.Config

	Interval    time.Duration
	TailSamples int

	// Observe receives every tick's summary. It is called on the runner's
	// goroutine and must not block for long.
	Observe func(*aggregate.Summary)

	now func() time.Time
}

func NewRunner(source datasource.MetricDataSource, nodes datasource.NodeSource, jobs JobController, cfg aggregate.Config) *Runner {
	return &Runner{
		Source:      source,
		NodeInfo:    nodes,
		Jobs:        jobs,
		Aggregate:   cfg,
		Interval:    DefaultInterval,
		TailSamples: DefaultTailSamples,
		now:         time.Now,
	}
}

// Run executes one run and returns the files it produced, the metrics CSV
// first and then the load generator logs.
func (r *Runner) Run(ctx context.Context, rc RunConfig) ([]string, error) {
	if rc.Workers < 1 {
		rc.Workers = DefaultWorkers
	}
	if rc.Duration == "" {
		rc.Duration = DefaultDuration
	}
	if err := os.MkdirAll(rc.OutDir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating output directory")
	}

	agg, err := r.open(ctx, rc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if agg.State() != aggregate.Finishing {
			_ = agg.StopCollecting()
		}
	}()
	klog.Infof("run %d RPS #%d -> %s", rc.Rate, rc.Seq, rc.MetricsPath())

	if err := r.Jobs.Delete(ctx); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	klog.Info("waiting for the cluster to settle")
	err = r.loop(ctx, ticker, agg, func() (bool, error) {
		return agg.IsCollecting(), nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.Jobs.Create(ctx, rc.Rate, rc.Duration, rc.Workers, rc.Affinity); err != nil {
		return nil, err
	}
	err = r.loop(ctx, ticker, agg, func() (bool, error) {
		return r.Jobs.Done(ctx, rc.Workers)
	})
	if err != nil {
		return nil, err
	}

	klog.Info("load finished, draining")
	if err := agg.StartDraining(); err != nil {
		return nil, err
	}
	for i := 0; i < r.TailSamples; i++ {
		if err := r.tick(ctx, agg); err != nil {
			return nil, err
		}
		if agg.IsIdle() {
			break
		}
		if err := nextTick(ctx, ticker); err != nil {
			return nil, err
		}
	}
	if err := agg.StopCollecting(); err != nil {
		return nil, err
	}

	files := []string{rc.MetricsPath()}
	logs, err := r.Jobs.CollectLogs(ctx, rc.OutDir, rc.Rate, rc.Seq)
	files = append(files, logs...)
	if err != nil {
		return files, err
	}
	if err := r.Jobs.Delete(ctx); err != nil {
		return files, err
	}
	klog.Infof("run %d RPS #%d complete", rc.Rate, rc.Seq)
	return files, nil
}

// Monitor samples until ctx is done without running any load. Collection
// starts once the cluster is idle; an empty path only feeds Observe.
func (r *Runner) Monitor(ctx context.Context, path string) error {
	agg, err := r.openPath(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if err := agg.StopCollecting(); err != nil {
			klog.Warningf("closing %s: %v", path, err)
		}
	}()

	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()
	for {
		if err := r.tick(ctx, agg); err != nil {
			return err
		}
		if err := nextTick(ctx, ticker); err != nil {
			return err
		}
	}
}

func (r *Runner) open(ctx context.Context, rc RunConfig) (*aggregate.Aggregator, error) {
	return r.openPath(ctx, rc.MetricsPath())
}

func (r *Runner) openPath(ctx context.Context, path string) (*aggregate.Aggregator, error) {
	cfg := r.Aggregate
	cfg.Path = path

	nodes, err := r.NodeInfo.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return aggregate.New(cfg, nil, nodes)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating metrics file")
	}
	agg, err := aggregate.New(cfg, f, nodes)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return agg, nil
}

// loop samples once per tick until done reports true.
func (r *Runner) loop(ctx context.Context, ticker *time.Ticker, agg *aggregate.Aggregator, done func() (bool, error)) error {
	for {
		if err := r.tick(ctx, agg); err != nil {
			return err
		}
		ok, err := done()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := nextTick(ctx, ticker); err != nil {
			return err
		}
	}
}

// tick takes one sample. An unreachable metrics API skips the tick; missing
// pod metadata or a malformed quantity aborts the run.
func (r *Runner) tick(ctx context.Context, agg *aggregate.Aggregator) error {
	metrics, err := r.Source.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, classify.ErrMissingPodMetadata) {
			return err
		}
		klog.Warningf("skipping tick: %v", err)
		return nil
	}
	summary, err := agg.Sample(r.clock(), metrics)
	if err != nil {
		return err
	}
	if r.Observe != nil {
		r.Observe(summary)
	}
	return nil
}

func (r *Runner) interval() time.Duration {
	if r.Interval <= 0 {
		return DefaultInterval
	}
	return r.Interval
}

func (r *Runner) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func nextTick(ctx context.Context, ticker *time.Ticker) error {
	select {
	case <-ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
