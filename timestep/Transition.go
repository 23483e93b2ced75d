package timestep

import "gonum.org/v1/gonum/mat"

// Transition packages a single environmental transition for storage in
// a replay buffer. The stored Action is always the action that was
// actually applied to the environment, after any exploration noise and
// clipping.
//
// State and NextState are copied on construction so that a Transition
// never shares backing data with a live observation vector.
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	NextState *mat.VecDense
	Done      bool
}

// NewTransition creates a Transition, copying the state, action, and
// next state vectors
func NewTransition(state, action mat.Vector, reward float64,
	nextState mat.Vector, done bool) Transition {
	return Transition{
		State:     copyVec(state),
		Action:    copyVec(action),
		Reward:    reward,
		NextState: copyVec(nextState),
		Done:      done,
	}
}

func copyVec(v mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	out.CloneFromVec(v)
	return out
}

// EpisodeInfo summarizes a completed episode. It is produced by the
// Monitor environment wrapper and consumed by the episode tracker.
type EpisodeInfo struct {
	Reward float64 // cumulative undiscounted reward
	Length int     // number of steps
	Time   float64 // wall-clock seconds since monitor creation
}

// Info carries per-environment metadata emitted by a vectorized
// environment step. Episode and Success are only present on the steps
// that end an episode (and only when the producing wrapper is active).
type Info struct {
	Episode *EpisodeInfo
	Success *bool

	// TerminalObservation holds the true final observation of an
	// episode when the vectorized environment auto-resets, in which
	// case the observation returned by Step already belongs to the
	// next episode.
	TerminalObservation mat.Vector
}
