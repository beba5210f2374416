package utils

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// PolyFit returns the least-squares coefficients c[0] + c[1]*x + ... + c[degree]*x^degree.
func PolyFit(x, y []float64, degree int) ([]float64, error) {
	if len(x) != len(y) {
		return nil, errors.Errorf("x and y differ in length: %d != %d", len(x), len(y))
	}
	if degree < 0 {
		return nil, errors.Errorf("negative degree %d", degree)
	}
	if len(x) < degree+1 {
		return nil, errors.Errorf("%d points cannot determine a degree %d polynomial", len(x), degree)
	}

	a := mat.NewDense(len(x), degree+1, nil)
	for i, xi := range x {
		p := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, p)
			p *= xi
		}
	}
	b := mat.NewVecDense(len(y), append([]float64(nil), y...))

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		return nil, errors.Wrap(err, "solving least squares")
	}

	coeffs := make([]float64, degree+1)
	for i := range coeffs {
		coeffs[i] = c.AtVec(i)
	}
	return coeffs, nil
}

// PolyEval evaluates coefficients as returned by PolyFit at x.
func PolyEval(coeffs []float64, x float64) float64 {
	v := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[n-1] = stop
	return out
}
