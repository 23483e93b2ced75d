// Package wrappers implements vectorized environment wrappers. Each
// wrapper is itself a vecenv.VecEnv and composes with the others;
// Monitor should be the innermost wrapper so that it records the raw,
// unnormalized episode statistics.
package wrappers

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/edbeeching/stable-baselines3/environment/vecenv"
	"github.com/edbeeching/stable-baselines3/timestep"
)

// Monitor wraps a vectorized environment and records per-episode
// cumulative reward, length, and elapsed wall-clock time. On the step
// that ends an episode, the summary is attached to that environment's
// step info, where the episode tracker picks it up.
type Monitor struct {
	vecenv.VecEnv

	rewards []float64
	lengths []int
	start   time.Time
}

// NewMonitor creates a Monitor around the argument vectorized
// environment
func NewMonitor(env vecenv.VecEnv) *Monitor {
	return &Monitor{
		VecEnv:  env,
		rewards: make([]float64, env.NumEnvs()),
		lengths: make([]int, env.NumEnvs()),
		start:   time.Now(),
	}
}

// Reset resets the wrapped environment and clears the in-progress
// episode accumulators
func (m *Monitor) Reset() []mat.Vector {
	for i := range m.rewards {
		m.rewards[i] = 0
		m.lengths[i] = 0
	}
	return m.VecEnv.Reset()
}

// Step steps the wrapped environment and injects an episode summary
// into the infos of environments whose episode just ended
func (m *Monitor) Step(actions []mat.Vector) ([]mat.Vector, []float64,
	[]bool, []timestep.Info) {
	obs, rewards, dones, infos := m.VecEnv.Step(actions)

	for i := range rewards {
		m.rewards[i] += rewards[i]
		m.lengths[i]++

		if dones[i] {
			infos[i].Episode = &timestep.EpisodeInfo{
				Reward: m.rewards[i],
				Length: m.lengths[i],
				Time:   time.Since(m.start).Seconds(),
			}
			m.rewards[i] = 0
			m.lengths[i] = 0
		}
	}

	return obs, rewards, dones, infos
}

// Unwrapped returns the environment this Monitor wraps
func (m *Monitor) Unwrapped() vecenv.VecEnv {
	return m.VecEnv
}

var _ vecenv.VecEnv = (*Monitor)(nil)
