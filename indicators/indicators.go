// Package indicators provides technical analysis indicators computed over
// whole bar-table columns.
//
// Every function returns a slice of the same length as its input. Values
// before the warmup period are NaN; callers should guard with math.IsNaN.
// Value i only depends on inputs [0..i], so nothing looks ahead.
package indicators

import "math"

// Func is the registry shape: full input arrays in, one equal-length array out.
type Func func(inputs ...[]float64) []float64

// Period adapts a single-input periodic indicator into a Func over inputs[0].
func Period(f func([]float64, int) []float64, period int) Func {
	return func(inputs ...[]float64) []float64 {
		return f(inputs[0], period)
	}
}

// Warmup returns the index of the first defined value, or len(values) when
// none is defined.
func Warmup(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(values)
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
