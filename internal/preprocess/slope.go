package preprocess

import (
	"gonum.org/v1/gonum/stat"
)

// Slope keeps the samples strictly above their mean, which is the plateau of
// a run that ramps up from idle and back down. When that would discard half
// the samples or more the plateau is not trustworthy and nothing is dropped.
func Slope() Preprocessor {
	return &slope{}
}

type slope struct {
}

func (slope) Preprocess(s *Samples) {
	if len(s.Values) == 0 {
		return
	}
	mean := stat.Mean(s.Values, nil)

	kept := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if v > mean {
			kept = append(kept, v)
		}
	}

	if 2*(len(s.Values)-len(kept)) >= len(s.Values) {
		return
	}
	s.Values = kept
	s.SlopeFiltered = true
}
