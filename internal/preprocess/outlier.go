package preprocess

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Outlier drops samples more than sigma population standard deviations from
// the mean.
func Outlier(sigma float64) Preprocessor {
	return &outlier{sigma: sigma}
}

type outlier struct {
	sigma float64
}

func (o *outlier) Preprocess(s *Samples) {
	if len(s.Values) == 0 {
		s.Mean, s.StdDev = 0, 0
		return
	}
	s.Mean, s.StdDev = stat.PopMeanStdDev(s.Values, nil)

	limit := o.sigma * s.StdDev
	kept := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if math.Abs(v-s.Mean) <= limit {
			kept = append(kept, v)
		}
	}
	s.Values = kept
}
