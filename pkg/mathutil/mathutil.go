// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"
)

// RelativeError returns |got-want|/|want|, or the absolute error when want is zero.
func RelativeError(got, want float64) float64 {
	if want == 0 {
		return math.Abs(got)
	}
	return math.Abs(got-want) / math.Abs(want)
}

// IsZero checks if a value is zero within tolerance
func IsZero(val, tolerance float64) bool {
	return math.Abs(val) <= tolerance
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// Grid returns n+1 evenly spaced points from start to end inclusive.
func Grid(start, end float64, n int) []float64 {
	if n <= 0 {
		return []float64{start}
	}
	points := make([]float64, n+1)
	step := (end - start) / float64(n)
	for i := range points {
		points[i] = start + float64(i)*step
	}
	// Pin the endpoint so accumulated rounding never overshoots it.
	points[n] = end
	return points
}

// CRRAUtility returns w^(1-gamma)/(1-gamma), or ln(w) when gamma is 1.
// The result is NaN for non-positive wealth.
func CRRAUtility(w, gamma float64) float64 {
	if w <= 0 {
		return math.NaN()
	}
	if gamma == 1 {
		return math.Log(w)
	}
	return math.Pow(w, 1-gamma) / (1 - gamma)
}

// CertaintyEquivalent inverts CRRAUtility.
func CertaintyEquivalent(u, gamma float64) float64 {
	if gamma == 1 {
		return math.Exp(u)
	}
	base := u * (1 - gamma)
	if base <= 0 {
		return math.NaN()
	}
	return math.Pow(base, 1/(1-gamma))
}
