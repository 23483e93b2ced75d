// Package vecenv implements synchronous vectorized environments. A
// vectorized environment steps a fixed set of sub-environments in
// lockstep, returning batched observations, rewards, done flags, and
// per-environment step infos. Sub-environments reset automatically at
// episode boundaries; the true final observation of an episode is
// surfaced through the step info so callers never lose it.
package vecenv

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/edbeeching/stable-baselines3/environment"
	"github.com/edbeeching/stable-baselines3/timestep"
)

// VecEnv is the batched stepping interface consumed by rollout
// collection. Implementations must be synchronous: Step returns only
// once every sub-environment has stepped.
type VecEnv interface {
	// Reset resets every sub-environment and returns the batch of
	// starting observations
	Reset() []mat.Vector

	// Step steps every sub-environment with its corresponding action.
	// Sub-environments whose episode ends are reset in place, and the
	// observation returned for them is the first observation of the
	// next episode. The final observation of the finished episode is
	// placed in the step info.
	Step(actions []mat.Vector) ([]mat.Vector, []float64, []bool,
		[]timestep.Info)

	NumEnvs() int
	Seed(uint64)
	ObservationSpec() environment.Spec
	ActionSpec() environment.Spec
}

// Sync is a VecEnv that steps its sub-environments sequentially in the
// calling goroutine
type Sync struct {
	envs  []environment.Environment
	steps []timestep.TimeStep
}

// NewSync creates a synchronous VecEnv from the argument
// sub-environments
func NewSync(envs ...environment.Environment) (*Sync, error) {
	if len(envs) == 0 {
		return nil, fmt.Errorf("newSync: at least one environment required")
	}
	return &Sync{
		envs:  envs,
		steps: make([]timestep.TimeStep, len(envs)),
	}, nil
}

// NumEnvs returns the number of sub-environments
func (s *Sync) NumEnvs() int {
	return len(s.envs)
}

// Seed seeds each sub-environment. Sub-environment i receives seed+i
// so that parallel episodes do not correlate.
func (s *Sync) Seed(seed uint64) {
	for i, env := range s.envs {
		env.Seed(seed + uint64(i))
	}
}

// Reset resets every sub-environment
func (s *Sync) Reset() []mat.Vector {
	obs := make([]mat.Vector, len(s.envs))
	for i, env := range s.envs {
		s.steps[i] = env.Reset()
		obs[i] = s.steps[i].Observation
	}
	return obs
}

// Step steps every sub-environment, auto-resetting finished episodes
func (s *Sync) Step(actions []mat.Vector) ([]mat.Vector, []float64, []bool,
	[]timestep.Info) {
	if len(actions) != len(s.envs) {
		panic(fmt.Sprintf("step: expected %d actions, got %d", len(s.envs),
			len(actions)))
	}

	obs := make([]mat.Vector, len(s.envs))
	rewards := make([]float64, len(s.envs))
	dones := make([]bool, len(s.envs))
	infos := make([]timestep.Info, len(s.envs))

	for i, env := range s.envs {
		step, done := env.Step(actions[i])
		s.steps[i] = step
		rewards[i] = step.Reward
		dones[i] = done
		obs[i] = step.Observation

		if done {
			infos[i].TerminalObservation = step.Observation
			if succeeder, ok := env.(environment.Succeeder); ok {
				success := succeeder.Success()
				infos[i].Success = &success
			}

			start := env.Reset()
			s.steps[i] = start
			obs[i] = start.Observation
		}
	}

	return obs, rewards, dones, infos
}

// ObservationSpec returns the observation specification shared by all
// sub-environments
func (s *Sync) ObservationSpec() environment.Spec {
	return s.envs[0].ObservationSpec()
}

// ActionSpec returns the action specification shared by all
// sub-environments
func (s *Sync) ActionSpec() environment.Spec {
	return s.envs[0].ActionSpec()
}
