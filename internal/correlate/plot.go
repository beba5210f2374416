package correlate

import (
	"regexp"
	"strings"

	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"

	"github.com/packagewjx/meshbench/internal/utils"
)

// Series is one (mesh, field) across buckets: the filtered points, one mean
// marker per run, and a polynomial trend through the points.
type Series struct {
	Name  string
	Mesh  string
	Field string

	X     []float64
	Y     []float64
	MeanX []float64
	MeanY []float64

	// Coeffs are lowest order first; nil when the points span fewer than two
	// buckets.
	Coeffs []float64
}

func (s *Series) HasFit() bool {
	return len(s.Coeffs) > 0
}

// Fit samples the trend line at n points spanning the series' buckets.
func (s *Series) Fit(n int) (xs, ys []float64) {
	if !s.HasFit() || len(s.X) == 0 {
		return nil, nil
	}
	lo, hi := s.X[0], s.X[0]
	for _, x := range s.X {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	xs = utils.Linspace(lo, hi, n)
	ys = make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = utils.PolyEval(s.Coeffs, x)
	}
	return xs, ys
}

// Plot builds one series per (mesh, field) for the given fields, in field
// order then mesh order. The fit degree drops to what the distinct buckets
// allow; series without points are left out.
func (c *CorrelatedMetrics) Plot(degree int, fields ...string) []*Series {
	var out []*Series
	for _, field := range fields {
		for _, mesh := range c.meshes {
			s := &Series{Name: mesh + " " + field, Mesh: mesh, Field: field}
			for _, e := range c.entries {
				if e.Field != field || e.Run.Mesh != mesh || len(e.Filtered) == 0 {
					continue
				}
				for _, y := range e.Filtered {
					s.X = append(s.X, float64(e.Bucket))
					s.Y = append(s.Y, y)
				}
				s.MeanX = append(s.MeanX, float64(e.Bucket))
				s.MeanY = append(s.MeanY, stat.Mean(e.Filtered, nil))
			}
			if len(s.X) == 0 {
				continue
			}
			s.Coeffs = fit(s, degree)
			out = append(out, s)
		}
	}
	return out
}

func fit(s *Series, degree int) []float64 {
	distinct := map[float64]struct{}{}
	for _, x := range s.X {
		distinct[x] = struct{}{}
	}
	if len(distinct) < 2 {
		return nil
	}
	if degree > len(distinct)-1 {
		degree = len(distinct) - 1
	}
	coeffs, err := utils.PolyFit(s.X, s.Y, degree)
	if err != nil {
		klog.Warningf("no trend for %s: %v", s.Name, err)
		return nil
	}
	return coeffs
}

// Group is a set of fields plotted together.
type Group struct {
	Title  string
	Unit   string
	Fields []string
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func (g Group) Slug() string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(g.Title), "-"), "-")
}

func DefaultGroups(latency bool) []Group {
	groups := []Group{
		{Title: "Data Plane CPU", Unit: "mC", Fields: []string{"data-plane CPU", "ztunnel mesh CPU", "waypoint mesh CPU"}},
		{Title: "Data Plane Memory", Unit: "MiB", Fields: []string{"data-plane mem", "ztunnel mesh mem", "waypoint mesh mem"}},
	}
	if latency {
		groups = append(groups, Group{Title: "Latency", Unit: "ms", Fields: Percentiles})
	}
	return groups
}
