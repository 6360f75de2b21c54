package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// mean / stddev / zscore
// =============================================================================

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, mean(nil))
	assert.Equal(t, 3.0, mean([]float64{1, 3, 5}))
}

func TestStddevZeroForSingleton(t *testing.T) {
	assert.Equal(t, 0.0, stddev([]float64{5}, 5))
}

func TestStddevKnownSeries(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	m := mean(values)
	sd := stddev(values, m)
	assert.InDelta(t, 5.0, m, 0.001)
	assert.InDelta(t, 2.0, sd, 0.001)
}

func TestZscoreZeroStddev(t *testing.T) {
	assert.Equal(t, 0.0, zscore(10, 5, 0))
}

// =============================================================================
// pearson
// =============================================================================

func TestPearsonPerfectPositive(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, pearson(x, y), 0.0001)
}

func TestPearsonPerfectNegative(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{10, 8, 6, 4, 2}
	assert.InDelta(t, -1.0, pearson(x, y), 0.0001)
}

func TestPearsonMismatchedLength(t *testing.T) {
	assert.Equal(t, 0.0, pearson([]float64{1, 2}, []float64{1}))
}

func TestPearsonZeroVariance(t *testing.T) {
	x := []float64{1, 1, 1, 1}
	y := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.0, pearson(x, y))
}

// =============================================================================
// linearRegression
// =============================================================================

func TestLinearRegressionIncreasing(t *testing.T) {
	y := []float64{1, 2, 3, 4, 5}
	slope, rSquared := linearRegression(y)
	assert.InDelta(t, 1.0, slope, 0.0001)
	assert.InDelta(t, 1.0, rSquared, 0.0001)
}

func TestLinearRegressionFlat(t *testing.T) {
	y := []float64{5, 5, 5, 5, 5}
	slope, rSquared := linearRegression(y)
	assert.Equal(t, 0.0, slope)
	assert.Equal(t, 0.0, rSquared)
}

func TestLinearRegressionTooShort(t *testing.T) {
	slope, rSquared := linearRegression([]float64{1})
	assert.Equal(t, 0.0, slope)
	assert.Equal(t, 0.0, rSquared)
}
