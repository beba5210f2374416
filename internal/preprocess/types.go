package preprocess

// Samples is one run's values for one field as they pass through a chain.
type Samples struct {
	Values []float64

	// SlopeFiltered is set when the slope filter actually dropped samples.
	SlopeFiltered bool
	// Mean and StdDev are the statistics the outlier filter judged against,
	// i.e. of the values before it removed anything.
	Mean   float64
	StdDev float64
}

type Preprocessor interface {
	Preprocess(s *Samples)
}

type chain struct {
	chain []Preprocessor
}

func (c *chain) Preprocess(s *Samples) {
	for _, processor := range c.chain {
		processor.Preprocess(s)
	}
}

func Chain(processors ...Preprocessor) Preprocessor {
	return &chain{chain: processors}
}

// ForUsage trims ramp-up and ramp-down, then drops outliers.
func ForUsage(sigma float64) Preprocessor {
	return Chain(Slope(), Outlier(sigma))
}

// ForLatency only drops outliers; a latency report has no time axis.
func ForLatency(sigma float64) Preprocessor {
	return Chain(Outlier(sigma))
}
