// Package rollout implements off-policy rollout collection: the
// step/episode loop that drives exploration, fills the replay buffer,
// tracks episode statistics, and computes return targets for the
// on-policy exploration data of state-dependent exploration.
package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Snapshot accumulates the trajectory of exactly one rollout call when
// on-policy exploration accumulation is enabled. After collection
// finishes, ComputeReturns extends the snapshot in place with return
// and advantage targets of equal length. A Snapshot is never reused
// across rollouts.
type Snapshot struct {
	obsSize    int
	actionSize int

	// Flat row-major storage, one row per step
	Observations []float64
	Actions      []float64
	Rewards      []float64
	Dones        []bool
	Values       []float64

	// Filled by ComputeReturns
	Returns    []float64
	Advantages []float64
}

// NewSnapshot creates an empty Snapshot for observations of length
// obsDim and actions of length actDim
func NewSnapshot(obsDim, actDim int) *Snapshot {
	return &Snapshot{
		obsSize:    obsDim,
		actionSize: actDim,
	}
}

// Len returns the number of steps stored
func (s *Snapshot) Len() int {
	return len(s.Rewards)
}

// Store appends a single step. The action must be the action actually
// applied to the environment, after noise injection and clipping.
func (s *Snapshot) Store(obs, action mat.Vector, reward float64, done bool,
	value float64) error {
	if obs.Len() != s.obsSize {
		return fmt.Errorf("store: illegal obs length \n\twant(%v)\n\thave(%v)",
			s.obsSize, obs.Len())
	}
	if action.Len() != s.actionSize {
		return fmt.Errorf("store: illegal action length "+
			"\n\twant(%v)\n\thave(%v)", s.actionSize, action.Len())
	}

	for i := 0; i < obs.Len(); i++ {
		s.Observations = append(s.Observations, obs.AtVec(i))
	}
	for i := 0; i < action.Len(); i++ {
		s.Actions = append(s.Actions, action.AtVec(i))
	}
	s.Rewards = append(s.Rewards, reward)
	s.Dones = append(s.Dones, done)
	s.Values = append(s.Values, value)
	return nil
}

// ComputeReturns fills Returns and Advantages by backward recursion
// over the stored steps. The lastDone flag is the done signal of the
// final executed step; lastValue is the value estimate of the
// observation the rollout ended on, used to bootstrap the unobserved
// future return when the trajectory was cut off mid-episode.
//
// At the final index the bootstrap is killed entirely by a terminal
// step; at earlier indices the next step's done flag gates the
// discounted recursion:
//
//	G[T-1] = r[T-1] + (1 - lastDone) * lastValue
//	G[i]   = r[i] + gamma * G[i+1] * (1 - done[i+1])
//
// Advantages are returns minus the value estimates captured during
// collection, never recomputed.
func (s *Snapshot) ComputeReturns(gamma float64, lastDone bool,
	lastValue float64) {
	n := s.Len()
	s.Returns = make([]float64, n)
	s.Advantages = make([]float64, n)
	if n == 0 {
		return
	}

	lastReturn := 0.0
	for step := n - 1; step >= 0; step-- {
		if step == n-1 {
			lastReturn = s.Rewards[step] +
				nonTerminal(lastDone)*lastValue
		} else {
			lastReturn = s.Rewards[step] +
				gamma*lastReturn*nonTerminal(s.Dones[step+1])
		}
		s.Returns[step] = lastReturn
	}

	for i := range s.Returns {
		s.Advantages[i] = s.Returns[i] - s.Values[i]
	}
}

func nonTerminal(done bool) float64 {
	if done {
		return 0.0
	}
	return 1.0
}
