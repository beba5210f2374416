package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolyFit_Quadratic(t *testing.T) {
	x := []float64{60, 60, 120, 240, 600, 1200}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 3 + 0.5*xi + 0.001*xi*xi
	}

	c, err := PolyFit(x, y, 2)
	require.NoError(t, err)
	require.Len(t, c, 3)
	assert.InDelta(t, 3, c[0], 1e-4)
	assert.InDelta(t, 0.5, c[1], 1e-6)
	assert.InDelta(t, 0.001, c[2], 1e-9)
	assert.InDelta(t, y[3], PolyEval(c, x[3]), 1e-4)
}

func TestPolyFit_Line(t *testing.T) {
	c, err := PolyFit([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1, c[0], 1e-9)
	assert.InDelta(t, 2, c[1], 1e-9)
}

func TestPolyFit_Errors(t *testing.T) {
	_, err := PolyFit([]float64{1, 2}, []float64{1}, 1)
	assert.Error(t, err)

	_, err = PolyFit([]float64{1, 2}, []float64{1, 2}, 2)
	assert.Error(t, err)

	_, err = PolyFit([]float64{1}, []float64{1}, -1)
	assert.Error(t, err)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, Linspace(0, 100, 5))
	assert.Equal(t, []float64{7}, Linspace(7, 9, 1))
	assert.Nil(t, Linspace(0, 1, 0))
}
