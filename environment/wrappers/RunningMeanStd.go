package wrappers

import "gonum.org/v1/gonum/floats"

// RunningMeanStd tracks the running mean and variance of a stream of
// vectors using Chan et al.'s parallel variance update. It is the
// statistic behind observation and reward normalization.
type RunningMeanStd struct {
	mean  []float64
	m2    []float64 // sum of squared deviations from the mean
	count float64
}

// NewRunningMeanStd creates a RunningMeanStd for vectors of length dim
func NewRunningMeanStd(dim int) *RunningMeanStd {
	return &RunningMeanStd{
		mean: make([]float64, dim),
		m2:   make([]float64, dim),

		// Small initial count keeps the first update numerically sane
		count: 1e-4,
	}
}

// Update folds a single sample into the running statistics
func (r *RunningMeanStd) Update(sample []float64) {
	if len(sample) != len(r.mean) {
		panic("update: sample length does not match statistic dimension")
	}

	r.count++
	for i, x := range sample {
		delta := x - r.mean[i]
		r.mean[i] += delta / r.count
		r.m2[i] += delta * (x - r.mean[i])
	}
}

// Mean returns a copy of the running mean
func (r *RunningMeanStd) Mean() []float64 {
	out := make([]float64, len(r.mean))
	copy(out, r.mean)
	return out
}

// Var returns a copy of the running variance
func (r *RunningMeanStd) Var() []float64 {
	out := make([]float64, len(r.m2))
	copy(out, r.m2)
	floats.Scale(1/r.count, out)
	return out
}
