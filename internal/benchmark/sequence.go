package benchmark

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var DefaultRates = []int{60, 120, 240, 600, 1200}

const (
	DefaultRuns  = 5
	DefaultLoops = 1
)

// Sequence repeats runs over a list of rates. Each loop gets its own
// directory <OutDir>/<Mesh>-<loop>, which is the layout the correlator
// expects.
type Sequence struct {
	Mesh   string
	OutDir string
	Rates  []int
	Runs   int
	Loops  int
	// Template supplies duration, workers and affinity for every run.
	Template RunConfig
}

func (s Sequence) Validate() error {
	if s.Mesh == "" {
		return errors.New("mesh name must not be empty")
	}
	if len(s.Rates) == 0 {
		return errors.New("at least one rate is required")
	}
	for _, r := range s.Rates {
		if r <= 0 {
			return errors.Errorf("rate must be positive, got %d", r)
		}
	}
	if s.Runs < 1 || s.Loops < 1 {
		return errors.Errorf("runs and loops must be at least 1, got %d and %d", s.Runs, s.Loops)
	}
	return nil
}

// Plan lists every run in execution order.
func (s Sequence) Plan() []RunConfig {
	plan := make([]RunConfig, 0, s.Loops*len(s.Rates)*s.Runs)
	for loop := 0; loop < s.Loops; loop++ {
		dir := filepath.Join(s.OutDir, fmt.Sprintf("%s-%02d", s.Mesh, loop))
		for _, rate := range s.Rates {
			for seq := 0; seq < s.Runs; seq++ {
				rc := s.Template
				rc.OutDir = dir
				rc.Rate = rate
				rc.Seq = seq
				plan = append(plan, rc)
			}
		}
	}
	return plan
}

// RunSequence executes the plan and stops at the first failed run.
func RunSequence(ctx context.Context, r *Runner, s Sequence) ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	plan := s.Plan()
	var files []string
	for i, rc := range plan {
		klog.Infof("sequence %d/%d: %s %d RPS #%d", i+1, len(plan), s.Mesh, rc.Rate, rc.Seq)
		out, err := r.Run(ctx, rc)
		files = append(files, out...)
		if err != nil {
			return files, errors.Wrapf(err, "run %d RPS #%d", rc.Rate, rc.Seq)
		}
	}
	return files, nil
}
