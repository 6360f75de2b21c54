package pattern

import "math"

// mean returns the arithmetic mean of values, 0 for an empty or singleton
// input by convention (spec.md §4.5).
func mean(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev returns the population standard deviation given a precomputed mean.
func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// zscore returns (value-mean)/stddev, 0 when stddev is 0.
func zscore(value, m, sd float64) float64 {
	if sd == 0 {
		return 0
	}
	return (value - m) / sd
}

// pearson returns the Pearson correlation coefficient of x and y, 0 for
// fewer than 2 samples or zero variance in either series.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0
	}
	mx, my := mean(x), mean(y)
	var num, sx, sy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		num += dx * dy
		sx += dx * dx
		sy += dy * dy
	}
	if sx == 0 || sy == 0 {
		return 0
	}
	return num / math.Sqrt(sx*sy)
}

// linearRegression fits y = slope*index + intercept over an implicit
// 0..n-1 index series, returning the slope and the R^2 goodness of fit.
func linearRegression(y []float64) (slope, rSquared float64) {
	n := len(y)
	if n < 2 {
		return 0, 0
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	mx, my := mean(x), mean(y)

	var num, den float64
	for i := 0; i < n; i++ {
		num += (x[i] - mx) * (y[i] - my)
		den += (x[i] - mx) * (x[i] - mx)
	}
	if den == 0 {
		return 0, 0
	}
	slope = num / den
	intercept := my - slope*mx

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		predicted := slope*x[i] + intercept
		ssRes += (y[i] - predicted) * (y[i] - predicted)
		ssTot += (y[i] - my) * (y[i] - my)
	}
	if ssTot == 0 {
		return slope, 0
	}
	rSquared = 1 - ssRes/ssTot
	return slope, rSquared
}
