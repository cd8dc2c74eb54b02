package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingMean(t *testing.T) {
	out := rollingMean([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestRollingMedianMinPeriods(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}
	out := rollingMedian(values, 3, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 3.0, out[1], 1e-9) // median of {5,1}
	assert.InDelta(t, 3.0, out[2], 1e-9) // median of {5,1,3}
	assert.InDelta(t, 2.0, out[3], 1e-9) // median of {1,3,2}
	assert.InDelta(t, 3.0, out[4], 1e-9) // median of {3,2,4}
}

func TestQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, quantile(values, 0), 1e-9)
	assert.InDelta(t, 3.0, quantile(values, 0.5), 1e-9)
	assert.InDelta(t, 5.0, quantile(values, 1), 1e-9)
	assert.InDelta(t, 4.0, quantile(values, 0.75), 1e-9)
}

func TestQuantileIgnoresNaN(t *testing.T) {
	values := []float64{math.NaN(), 10, 20, math.NaN(), 30}
	assert.InDelta(t, 20.0, quantile(values, 0.5), 1e-9)
}

func TestRankPercentile(t *testing.T) {
	out := rank([]float64{30, 10, 20})
	assert.InDelta(t, 1.0, out[0], 1e-9)
	assert.InDelta(t, 1.0/3, out[1], 1e-9)
	assert.InDelta(t, 2.0/3, out[2], 1e-9)
}

func TestRankTiesAndNaN(t *testing.T) {
	out := rank([]float64{10, 10, math.NaN(), 20})
	assert.InDelta(t, 0.5, out[0], 1e-9) // average of ranks 1,2 over 3
	assert.InDelta(t, 0.5, out[1], 1e-9)
	assert.True(t, math.IsNaN(out[2]))
	assert.InDelta(t, 1.0, out[3], 1e-9)
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, pearson(a, b), 1e-9)

	c := []float64{5, 4, 3, 2, 1}
	assert.InDelta(t, -1.0, pearson(a, c), 1e-9)
}

func TestVariance(t *testing.T) {
	assert.InDelta(t, 2.5, variance([]float64{1, 2, 3, 4, 5}), 1e-9)
	assert.Equal(t, 0.0, variance([]float64{7}))
}
