package correlate

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/packagewjx/meshbench/internal/utils"
)

const fitPoints = 100

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, " ")
}

// WriteDatasets writes one row per (run, field). Raw and filtered values are
// space separated within their cell.
func (c *CorrelatedMetrics) WriteDatasets(w io.Writer) error {
	header := []string{
		"mesh", "variant", "rate", "seq", "bucket", "field",
		"mean", "stddev", "median", "slope_filtered", "raw", "filtered",
	}
	records := make([][]string, 0, len(c.entries))
	for _, e := range c.entries {
		records = append(records, []string{
			e.Run.Mesh,
			e.Run.Variant,
			strconv.Itoa(e.Run.Rate),
			strconv.Itoa(e.Run.Seq),
			strconv.Itoa(e.Bucket),
			e.Field,
			formatFloat(e.Mean),
			formatFloat(e.StdDev),
			formatFloat(e.Median),
			strconv.FormatBool(e.SlopeFiltered),
			joinFloats(e.Raw),
			joinFloats(e.Filtered),
		})
	}
	_, err := utils.WriteRecords(w, header, records)
	return errors.Wrap(err, "writing datasets")
}

// WriteSeries writes the points, mean markers and sampled trend of each
// series as series,kind,x,y rows.
func WriteSeries(w io.Writer, series []*Series) error {
	var records [][]string
	for _, s := range series {
		for i := range s.X {
			records = append(records, []string{s.Name, "point", formatFloat(s.X[i]), formatFloat(s.Y[i])})
		}
		for i := range s.MeanX {
			records = append(records, []string{s.Name, "mean", formatFloat(s.MeanX[i]), formatFloat(s.MeanY[i])})
		}
		xs, ys := s.Fit(fitPoints)
		for i := range xs {
			records = append(records, []string{s.Name, "fit", formatFloat(xs[i]), formatFloat(ys[i])})
		}
	}
	_, err := utils.WriteRecords(w, []string{"series", "kind", "x", "y"}, records)
	return errors.Wrap(err, "writing series")
}
