package policy

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// For stability, the standard deviation of the exploration
// distribution is offset from 0.
const stdOffset float64 = 1e-3

const (
	// Keys for the weights map: map[string]*mat.Dense
	MeanWeightsKey string = "mean"
	StdWeightsKey  string = "standard deviation"
)

// LinearGaussian implements a linear Gaussian actor with
// state-dependent exploration. The action mean is a linear function of
// the observation. Exploration perturbs the mean with a noise matrix
// that is held fixed between ResetNoise calls:
//
//	a(s) = W·s + diag(σ) ε s / sqrt(features),	ε_ij ~ N(0, 1)
//
// Because ε changes only when ResetNoise is called, consecutive actions
// in similar states are similar, unlike independent per-step noise.
type LinearGaussian struct {
	meanWeights *mat.Dense
	logStd      *mat.VecDense
	noise       *mat.Dense

	features   int
	actionDims int
	stdNormal  distuv.Normal
}

// NewLinearGaussian creates a LinearGaussian actor for observations of
// length features and actions of length actionDims. Weights start at
// zero; the initial noise matrix is drawn immediately so the actor is
// usable without an explicit ResetNoise.
func NewLinearGaussian(features, actionDims int, seed uint64) *LinearGaussian {
	l := &LinearGaussian{
		meanWeights: mat.NewDense(actionDims, features, nil),
		logStd:      mat.NewVecDense(actionDims, nil),
		noise:       mat.NewDense(actionDims, features, nil),
		features:    features,
		actionDims:  actionDims,
		stdNormal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}
	l.ResetNoise()
	return l
}

// Predict returns the action for an observation. When deterministic,
// the exploration term is dropped and the linear mean is returned.
func (l *LinearGaussian) Predict(obs mat.Vector,
	deterministic bool) *mat.VecDense {
	if obs.Len() != l.features {
		panic(fmt.Sprintf("predict: invalid observation length "+
			"\n\twant(%v)\n\thave(%v)", l.features, obs.Len()))
	}

	action := mat.NewVecDense(l.actionDims, nil)
	action.MulVec(l.meanWeights, obs)
	if deterministic {
		return action
	}

	perturbation := mat.NewVecDense(l.actionDims, nil)
	perturbation.MulVec(l.noise, obs)

	std := l.Std()
	scale := math.Sqrt(float64(l.features))
	for i := 0; i < l.actionDims; i++ {
		action.SetVec(i, action.AtVec(i)+
			std.AtVec(i)*perturbation.AtVec(i)/scale)
	}
	return action
}

// ResetNoise draws a fresh exploration noise matrix
func (l *LinearGaussian) ResetNoise() {
	for i := 0; i < l.actionDims; i++ {
		for j := 0; j < l.features; j++ {
			l.noise.Set(i, j, l.stdNormal.Rand())
		}
	}
}

// Std returns the per-dimension standard deviation of the exploration
// distribution
func (l *LinearGaussian) Std() mat.Vector {
	std := mat.NewVecDense(l.actionDims, nil)
	for i := 0; i < l.actionDims; i++ {
		std.SetVec(i, math.Exp(l.logStd.AtVec(i))+stdOffset)
	}
	return std
}

// Weights returns the weights of the actor
func (l *LinearGaussian) Weights() map[string]*mat.Dense {
	logStd := mat.NewDense(1, l.actionDims, nil)
	for i := 0; i < l.actionDims; i++ {
		logStd.Set(0, i, l.logStd.AtVec(i))
	}

	return map[string]*mat.Dense{
		MeanWeightsKey: l.meanWeights,
		StdWeightsKey:  logStd,
	}
}

// SetWeights sets the weight pointers to point to a new set of weights
func (l *LinearGaussian) SetWeights(weights map[string]*mat.Dense) error {
	meanWeights, ok := weights[MeanWeightsKey]
	if !ok {
		return fmt.Errorf("setWeights: no weights named %q", MeanWeightsKey)
	}
	r, c := meanWeights.Dims()
	if r != l.actionDims || c != l.features {
		return fmt.Errorf("setWeights: invalid mean weight dimensions "+
			"\n\twant(%vx%v)\n\thave(%vx%v)", l.actionDims, l.features, r, c)
	}
	l.meanWeights = meanWeights

	logStd, ok := weights[StdWeightsKey]
	if !ok {
		return fmt.Errorf("setWeights: no weights named %q", StdWeightsKey)
	}
	if _, c := logStd.Dims(); c != l.actionDims {
		return fmt.Errorf("setWeights: invalid std weight dimensions")
	}
	for i := 0; i < l.actionDims; i++ {
		l.logStd.SetVec(i, logStd.At(0, i))
	}

	return nil
}

// LinearValue is a linear state-value estimator
type LinearValue struct {
	weights *mat.VecDense
}

// NewLinearValue creates a LinearValue for observations of length
// features, with zero-initialized weights
func NewLinearValue(features int) *LinearValue {
	return &LinearValue{weights: mat.NewVecDense(features, nil)}
}

// Value returns the estimated return from an observation
func (v *LinearValue) Value(obs mat.Vector) float64 {
	return mat.Dot(v.weights, obs)
}

// Weights returns the critic weight vector for use by update phases
func (v *LinearValue) Weights() *mat.VecDense {
	return v.weights
}

var _ Actor = (*LinearGaussian)(nil)
var _ ValueEstimator = (*LinearValue)(nil)
