package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/datasource"
)

// MockJobs pretends to run a load job against a mock data source. The
// source is busy between Create and the Polls-th call to Done.
type MockJobs struct {
	Source  *datasource.Mock
	LoadGen string
	Polls   int

	mu        sync.Mutex
	remaining int
	rate      int
	workers   int
}

var _ JobController = &MockJobs{}

func NewMockJobs(source *datasource.Mock, loadgen string) *MockJobs {
	return &MockJobs{Source: source, LoadGen: loadgen, Polls: 3}
}

func (m *MockJobs) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = 0
	m.Source.SetBusy(false)
	return nil
}

func (m *MockJobs) Create(ctx context.Context, rate int, duration string, workers int, affinity bool) error {
	if workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", workers)
	}
	if _, err := Command(m.LoadGen, rate/workers, duration); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = m.Polls
	m.rate = rate
	m.workers = workers
	m.Source.SetBusy(true)
	klog.Infof("mock %s started at %d RPS", m.LoadGen, rate)
	return nil
}

func (m *MockJobs) Done(ctx context.Context, workers int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remaining > 0 {
		m.remaining--
	}
	if m.remaining == 0 {
		m.Source.SetBusy(false)
		return true, nil
	}
	return false, nil
}

// CollectLogs writes one synthetic report per worker in the load
// generator's own format.
func (m *MockJobs) CollectLogs(ctx context.Context, outdir string, rate, seq int) ([]string, error) {
	m.mu.Lock()
	workers := m.workers
	m.mu.Unlock()
	if workers < 1 {
		workers = 1
	}

	paths := make([]string, 0, workers)
	for i := 0; i < workers; i++ {
		pod := fmt.Sprintf("%s-m%04d", m.LoadGen, i)
		path := filepath.Join(outdir, fmt.Sprintf("%d-%d-%s.log", rate, seq, pod))
		if err := os.WriteFile(path, []byte(mockReport(m.LoadGen, rate/workers)), 0644); err != nil {
			return paths, errors.Wrap(err, "writing mock report")
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func mockReport(loadgen string, rate int) string {
	if loadgen == LoadGenWrk2 {
		return fmt.Sprintf(`  Detailed Percentile spectrum:
       Value   Percentile   TotalCount 1/(1-Percentile)

       1.000     0.000000            1         1.00
       2.000     0.500000          500         2.00
       3.000     0.750000          750         4.00
       4.000     0.900000          900        10.00
       5.000     0.950000          950        20.00
       9.000     0.990000          990       100.00
      12.000     1.000000         1000          inf
#[Mean    =        2.500, StdDeviation   =         1.000]
----------------------------------------------------------
Requests/sec:   %d.00
`, rate)
	}
	return fmt.Sprintf(`{'summary': {'successRate': 1.0, 'requestsPerSec': %d.0}, `+
		`'latencyPercentiles': {'p10': 0.0005, 'p50': 0.002, 'p75': 0.003, 'p90': 0.004, `+
		`'p95': 0.005, 'p99': 0.009, 'p99.9': None}}`, rate)
}
