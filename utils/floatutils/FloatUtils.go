// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max.
// If min exceeds the floating point, then the function returns the min.
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipSlice clips each element of values in place to [min, max] and
// returns the slice
func ClipSlice(values []float64, min, max float64) []float64 {
	for i := range values {
		values[i] = Clip(values[i], min, max)
	}
	return values
}

// Ones returns a slice of n ones
func Ones(n int) []float64 {
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1.0
	}
	return ones
}

// SafeMean computes the mean of a slice, returning NaN for an empty
// slice instead of panicking. The NaN sentinel is for display only and
// must never feed back into control decisions.
func SafeMean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}
