// Package tracker implements rolling statistics over recently completed
// episodes, used for progress reporting during training.
package tracker

import (
	"container/list"

	"github.com/edbeeching/stable-baselines3/timestep"
	"github.com/edbeeching/stable-baselines3/utils/floatutils"
)

// DefaultWindowSize is the number of recent episodes kept in each
// rolling window
const DefaultWindowSize = 100

// EpisodeTracker keeps bounded FIFO windows of recent episode summaries
// and success flags. When a window is full, the oldest entry is evicted
// first. The means it reports are for display only and never feed back
// into control decisions.
type EpisodeTracker struct {
	episodes  *list.List // of timestep.EpisodeInfo
	successes *list.List // of bool
	capacity  int
}

// New creates an EpisodeTracker whose windows hold up to capacity
// entries
func New(capacity int) *EpisodeTracker {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &EpisodeTracker{
		episodes:  list.New(),
		successes: list.New(),
		capacity:  capacity,
	}
}

// Record scans one vectorized step's infos. Episode summaries are
// appended to the reward/length window whenever present; success flags
// are appended only on the environments whose done flag is set.
func (e *EpisodeTracker) Record(infos []timestep.Info, dones []bool) {
	for i, info := range infos {
		if info.Episode != nil {
			e.episodes.PushBack(*info.Episode)
			if e.episodes.Len() > e.capacity {
				e.episodes.Remove(e.episodes.Front())
			}
		}
		if info.Success != nil && dones[i] {
			e.successes.PushBack(*info.Success)
			if e.successes.Len() > e.capacity {
				e.successes.Remove(e.successes.Front())
			}
		}
	}
}

// Len returns the number of episode summaries currently in the window
func (e *EpisodeTracker) Len() int {
	return e.episodes.Len()
}

// SuccessLen returns the number of success flags currently in the
// window
func (e *EpisodeTracker) SuccessLen() int {
	return e.successes.Len()
}

// Rewards returns the episode rewards in the window, oldest first
func (e *EpisodeTracker) Rewards() []float64 {
	rewards := make([]float64, 0, e.episodes.Len())
	for el := e.episodes.Front(); el != nil; el = el.Next() {
		rewards = append(rewards, el.Value.(timestep.EpisodeInfo).Reward)
	}
	return rewards
}

// Lengths returns the episode lengths in the window, oldest first
func (e *EpisodeTracker) Lengths() []float64 {
	lengths := make([]float64, 0, e.episodes.Len())
	for el := e.episodes.Front(); el != nil; el = el.Next() {
		lengths = append(lengths,
			float64(el.Value.(timestep.EpisodeInfo).Length))
	}
	return lengths
}

// MeanReward returns the mean episode reward over the window, or NaN
// when no episodes have completed
func (e *EpisodeTracker) MeanReward() float64 {
	return floatutils.SafeMean(e.Rewards())
}

// MeanLength returns the mean episode length over the window, or NaN
// when no episodes have completed
func (e *EpisodeTracker) MeanLength() float64 {
	return floatutils.SafeMean(e.Lengths())
}

// SuccessRate returns the fraction of recent episodes flagged
// successful, or NaN when no flags have been recorded
func (e *EpisodeTracker) SuccessRate() float64 {
	rate := make([]float64, 0, e.successes.Len())
	for el := e.successes.Front(); el != nil; el = el.Next() {
		if el.Value.(bool) {
			rate = append(rate, 1.0)
		} else {
			rate = append(rate, 0.0)
		}
	}
	return floatutils.SafeMean(rate)
}
