package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradient_QuadraticNonUniform(t *testing.T) {
	x := []float64{0, 0.5, 1.5, 2, 3.5, 5}
	f := make([]float64, len(x))
	for k, xv := range x {
		f[k] = xv * xv
	}
	g := Gradient(f, x)
	for k := 1; k < len(x)-1; k++ {
		assert.InDelta(t, 2*x[k], g[k], 1e-12, "x=%g", x[k])
	}
	// One-sided ends.
	assert.InDelta(t, (0.25-0)/0.5, g[0], 1e-12)
	assert.InDelta(t, (25-12.25)/1.5, g[len(g)-1], 1e-12)
}

func TestGradient_TwoPoints(t *testing.T) {
	g := Gradient([]float64{1, 3}, []float64{0, 2})
	assert.Equal(t, []float64{1, 1}, g)
}

func TestLocalMaxima(t *testing.T) {
	assert.Equal(t, []int{1, 3}, LocalMaxima([]float64{1, 3, 1, 3, 1}))
	assert.Equal(t, []int{3}, LocalMaxima([]float64{0, 1, 2, 2, 2, 1, 0}))
	assert.Equal(t, []int{2}, LocalMaxima([]float64{0, 1, 2, 2, 1}))
	assert.Empty(t, LocalMaxima([]float64{0, 1, 2, 3, 4}))
	assert.Empty(t, LocalMaxima([]float64{5, 1, 1, 1}))
	assert.Empty(t, LocalMaxima([]float64{0, 2, 2}))
	assert.Empty(t, LocalMaxima(nil))
}
