package correlate

import (
	"math"
	"sort"

	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/preprocess"
	"github.com/packagewjx/meshbench/internal/utils"
)

type Options struct {
	// Sigma is the outlier cut-off in standard deviations.
	Sigma float64
	// Pooled merges every run in a bucket before filtering and skips the
	// slope filter, as the first single-run tooling did.
	Pooled bool
}

func DefaultOptions() Options {
	return Options{Sigma: 2}
}

// DefaultPooledSigma is the cut-off the pooled mode used historically.
const DefaultPooledSigma = 1

// Dataset is one (run, field) after filtering. Mean and StdDev describe the
// values the outlier filter saw, so they stay meaningful when Filtered is
// empty.
type Dataset struct {
	Mean          float64
	StdDev        float64
	Median        float64
	Raw           []float64
	Filtered      []float64
	SlopeFiltered bool
}

type Entry struct {
	Run    RunID
	Bucket int
	Field  string
	*Dataset
}

func (e *Entry) Mesh() string {
	return e.Run.Mesh
}

type CorrelatedMetrics struct {
	entries []*Entry
	buckets []int
	meshes  []string
	fields  []string
}

func roundToTen(v float64) int {
	return int(math.Round(v/10)) * 10
}

type groupKey struct {
	run   RunID
	field string
}

type group struct {
	bucket  int
	latency bool
	values  []float64
}

// New groups the files by run and field and filters each group. Latency
// shards of one run are summed to get the run's achieved rate, which rounded
// to ten is the bucket runs are compared by.
func New(files []*MetricsFile, opts Options) *CorrelatedMetrics {
	achieved := make(map[RunID]float64)
	for _, f := range files {
		if f.Kind.IsLatency() {
			achieved[f.RunID] += f.Rate
		}
	}
	bucketOf := func(run RunID) int {
		if rate, ok := achieved[run]; ok {
			return roundToTen(rate)
		}
		return roundToTen(float64(run.Rate))
	}

	groups := make(map[groupKey]*group)
	var order []groupKey
	for _, f := range files {
		bucket := bucketOf(f.RunID)
		run := f.RunID
		if opts.Pooled {
			run = RunID{Mesh: f.Mesh, Rate: bucket}
		}
		for _, field := range f.Fields {
			values, ok := f.Data[field]
			if !ok {
				continue
			}
			k := groupKey{run: run, field: field}
			g, ok := groups[k]
			if !ok {
				g = &group{bucket: bucket, latency: f.Kind.IsLatency()}
				groups[k] = g
				order = append(order, k)
			}
			g.values = append(g.values, values...)
		}
	}

	sigma := opts.Sigma
	if sigma <= 0 {
		sigma = DefaultOptions().Sigma
		if opts.Pooled {
			sigma = DefaultPooledSigma
		}
	}
	cm := &CorrelatedMetrics{}
	buckets := map[int]struct{}{}
	meshes := map[string]struct{}{}
	fields := map[string]struct{}{}
	for _, k := range order {
		g := groups[k]

		var chain preprocess.Preprocessor
		switch {
		case opts.Pooled || g.latency:
			chain = preprocess.ForLatency(sigma)
		default:
			chain = preprocess.ForUsage(sigma)
		}
		samples := &preprocess.Samples{Values: append([]float64(nil), g.values...)}
		chain.Preprocess(samples)

		ds := &Dataset{
			Mean:          samples.Mean,
			StdDev:        samples.StdDev,
			Raw:           g.values,
			Filtered:      samples.Values,
			SlopeFiltered: samples.SlopeFiltered,
		}
		if len(ds.Filtered) > 0 {
			ds.Median = utils.Median(ds.Filtered)
		} else {
			ds.Median = utils.Median(ds.Raw)
			klog.V(1).Infof("%s %s: nothing left after filtering", k.run, k.field)
		}

		cm.entries = append(cm.entries, &Entry{Run: k.run, Bucket: g.bucket, Field: k.field, Dataset: ds})
		buckets[g.bucket] = struct{}{}
		meshes[k.run.Mesh] = struct{}{}
		fields[k.field] = struct{}{}
	}

	sort.SliceStable(cm.entries, func(i, j int) bool {
		a, b := cm.entries[i], cm.entries[j]
		if a.Bucket != b.Bucket {
			return a.Bucket < b.Bucket
		}
		if a.Run.Mesh != b.Run.Mesh {
			return a.Run.Mesh < b.Run.Mesh
		}
		if a.Run.Variant != b.Run.Variant {
			return a.Run.Variant < b.Run.Variant
		}
		if a.Run.Rate != b.Run.Rate {
			return a.Run.Rate < b.Run.Rate
		}
		if a.Run.Seq != b.Run.Seq {
			return a.Run.Seq < b.Run.Seq
		}
		return a.Field < b.Field
	})

	for b := range buckets {
		cm.buckets = append(cm.buckets, b)
	}
	sort.Ints(cm.buckets)
	cm.meshes = sortedKeys(meshes)
	cm.fields = sortedKeys(fields)
	return cm
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Datasets lists every (run, field) ordered by bucket, mesh, run then field.
func (c *CorrelatedMetrics) Datasets() []*Entry {
	return c.entries
}

func (c *CorrelatedMetrics) Buckets() []int {
	return c.buckets
}

func (c *CorrelatedMetrics) Meshes() []string {
	return c.meshes
}

func (c *CorrelatedMetrics) Fields() []string {
	return c.fields
}

// Lookup returns the dataset for one run and field.
func (c *CorrelatedMetrics) Lookup(run RunID, field string) (*Entry, bool) {
	for _, e := range c.entries {
		if e.Run == run && e.Field == field {
			return e, true
		}
	}
	return nil, false
}
