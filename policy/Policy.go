// Package policy defines the actor and value-estimator interfaces
// consumed during rollout collection, and a linear Gaussian actor that
// implements them.
package policy

import "gonum.org/v1/gonum/mat"

// Actor selects actions from observations. Predict returns the actor's
// action in the environment's native action scale; the rollout
// collector rescales it to [-1, 1] before applying exploration noise.
//
// Actors that use state-dependent exploration own a resettable noise
// source: ResetNoise draws a fresh noise parameterization that stays
// fixed until the next call, which makes exploration smooth within an
// episode instead of independent across steps.
type Actor interface {
	Predict(obs mat.Vector, deterministic bool) *mat.VecDense
	ResetNoise()

	// Std returns the per-dimension standard deviation of the current
	// exploration distribution. Used for logging only.
	Std() mat.Vector
}

// ValueEstimator predicts the expected return from an observation
type ValueEstimator interface {
	Value(obs mat.Vector) float64
}
