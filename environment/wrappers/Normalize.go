package wrappers

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/edbeeching/stable-baselines3/environment/vecenv"
	"github.com/edbeeching/stable-baselines3/timestep"
	"github.com/edbeeching/stable-baselines3/utils/floatutils"
)

// Normalize wraps a vectorized environment and normalizes observations
// by a running mean and standard deviation, and rewards by the running
// standard deviation of the discounted return. The raw values of the
// most recent step remain available through OriginalObs and
// OriginalReward; replay buffers must store those so that replayed data
// keeps the true environment scale.
type Normalize struct {
	vecenv.VecEnv

	obsRMS *RunningMeanStd
	retRMS *RunningMeanStd

	normObs    bool
	normReward bool
	clipObs    float64
	clipReward float64
	gamma      float64
	epsilon    float64
	training   bool

	// Discounted return accumulator, one per sub-environment
	returns []float64

	origObs    []mat.Vector
	origReward []float64
}

// NewNormalize creates a Normalize wrapper. The clip parameters bound
// the normalized observations and rewards; gamma is the discount used
// for the return accumulator that scales rewards.
func NewNormalize(env vecenv.VecEnv, normObs, normReward bool, clipObs,
	clipReward, gamma, epsilon float64) *Normalize {
	obsDim := env.ObservationSpec().Shape.Len()

	return &Normalize{
		VecEnv:     env,
		obsRMS:     NewRunningMeanStd(obsDim),
		retRMS:     NewRunningMeanStd(1),
		normObs:    normObs,
		normReward: normReward,
		clipObs:    clipObs,
		clipReward: clipReward,
		gamma:      gamma,
		epsilon:    epsilon,
		training:   true,
		returns:    make([]float64, env.NumEnvs()),
	}
}

// SetTraining toggles whether the running statistics update on each
// step. Disable when evaluating a trained agent.
func (n *Normalize) SetTraining(training bool) {
	n.training = training
}

// Reset resets the wrapped environment and the return accumulators
func (n *Normalize) Reset() []mat.Vector {
	obs := n.VecEnv.Reset()
	for i := range n.returns {
		n.returns[i] = 0
	}

	n.origObs = copyObsBatch(obs)
	n.origReward = make([]float64, n.NumEnvs())

	return n.normalizeObsBatch(obs)
}

// Step steps the wrapped environment and returns normalized
// observations and rewards
func (n *Normalize) Step(actions []mat.Vector) ([]mat.Vector, []float64,
	[]bool, []timestep.Info) {
	obs, rewards, dones, infos := n.VecEnv.Step(actions)

	n.origObs = copyObsBatch(obs)
	n.origReward = make([]float64, len(rewards))
	copy(n.origReward, rewards)

	if n.training {
		for _, o := range obs {
			n.obsRMS.Update(rawData(o))
		}
		for i, r := range rewards {
			n.returns[i] = n.returns[i]*n.gamma + r
			n.retRMS.Update([]float64{n.returns[i]})
			if dones[i] {
				n.returns[i] = 0
			}
		}
	}

	normObs := n.normalizeObsBatch(obs)

	normRewards := rewards
	if n.normReward {
		normRewards = make([]float64, len(rewards))
		scale := math.Sqrt(n.retRMS.Var()[0] + n.epsilon)
		for i, r := range rewards {
			normRewards[i] = floatutils.Clip(r/scale, -n.clipReward,
				n.clipReward)
		}
	}

	return normObs, normRewards, dones, infos
}

// Unwrapped returns the environment this Normalize wraps
func (n *Normalize) Unwrapped() vecenv.VecEnv {
	return n.VecEnv
}

// OriginalObs returns the unnormalized observations of the most recent
// Reset or Step call
func (n *Normalize) OriginalObs() []mat.Vector {
	return n.origObs
}

// OriginalReward returns the unnormalized rewards of the most recent
// Step call
func (n *Normalize) OriginalReward() []float64 {
	return n.origReward
}

// NormalizeObs normalizes a single observation with the current
// running statistics
func (n *Normalize) NormalizeObs(obs mat.Vector) mat.Vector {
	if !n.normObs {
		return obs
	}

	mean := n.obsRMS.Mean()
	variance := n.obsRMS.Var()
	out := mat.NewVecDense(obs.Len(), nil)
	for i := 0; i < obs.Len(); i++ {
		normed := (obs.AtVec(i) - mean[i]) / math.Sqrt(variance[i]+n.epsilon)
		out.SetVec(i, floatutils.Clip(normed, -n.clipObs, n.clipObs))
	}
	return out
}

func (n *Normalize) normalizeObsBatch(obs []mat.Vector) []mat.Vector {
	if !n.normObs {
		return obs
	}

	out := make([]mat.Vector, len(obs))
	for i, o := range obs {
		out[i] = n.NormalizeObs(o)
	}
	return out
}

func copyObsBatch(obs []mat.Vector) []mat.Vector {
	out := make([]mat.Vector, len(obs))
	for i, o := range obs {
		c := mat.NewVecDense(o.Len(), nil)
		c.CloneFromVec(o)
		out[i] = c
	}
	return out
}

func rawData(v mat.Vector) []float64 {
	if dense, ok := v.(*mat.VecDense); ok {
		return dense.RawVector().Data
	}
	data := make([]float64, v.Len())
	for i := range data {
		data[i] = v.AtVec(i)
	}
	return data
}

var _ vecenv.VecEnv = (*Normalize)(nil)
