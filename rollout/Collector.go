package rollout

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/edbeeching/stable-baselines3/callback"
	"github.com/edbeeching/stable-baselines3/environment"
	"github.com/edbeeching/stable-baselines3/environment/vecenv"
	"github.com/edbeeching/stable-baselines3/environment/wrappers"
	"github.com/edbeeching/stable-baselines3/expreplay"
	"github.com/edbeeching/stable-baselines3/logger"
	"github.com/edbeeching/stable-baselines3/noise"
	"github.com/edbeeching/stable-baselines3/policy"
	"github.com/edbeeching/stable-baselines3/timestep"
	"github.com/edbeeching/stable-baselines3/tracker"
	"github.com/edbeeching/stable-baselines3/utils/actionutils"
	"github.com/edbeeching/stable-baselines3/utils/floatutils"
)

// Unbounded is the sentinel for a budget that should not limit a
// rollout
const Unbounded = -1

// Config configures a Collector
type Config struct {
	// UseSDE enables state-dependent exploration: the actor's own
	// resettable noise source replaces deterministic prediction plus
	// external action noise
	UseSDE bool

	// SDESampleFreq resamples the actor's noise every n steps when
	// positive. Non-positive values resample only at rollout start.
	SDESampleFreq int

	// UseSDEAtWarmup uses state-dependent exploration instead of
	// uniform random sampling during the warm-up phase
	UseSDEAtWarmup bool

	// LearningStarts is the number of warm-up steps during which
	// actions are sampled uniformly from the action space
	LearningStarts int

	// Gamma is the discount factor for return computation
	Gamma float64

	// OnPolicyExploration accumulates a trajectory snapshot during
	// each rollout and computes return/advantage targets on it.
	// Requires UseSDE and a value estimator.
	OnPolicyExploration bool

	// Verbose gates progress logging: 0 silent, 1 training
	// information
	Verbose int

	// Seed seeds the warm-up action sampler
	Seed uint64
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1], got %v", c.Gamma)
	}
	if c.LearningStarts < 0 {
		return fmt.Errorf("validate: learningStarts must be >= 0, got %v",
			c.LearningStarts)
	}
	if c.OnPolicyExploration && !c.UseSDE {
		return fmt.Errorf("validate: on-policy exploration accumulation " +
			"requires state-dependent exploration")
	}
	return nil
}

// CollectConfig parameterizes a single Collect call
type CollectConfig struct {
	// NSteps and NEpisodes are the rollout budgets; pass Unbounded to
	// leave one side unlimited. The loop continues while EITHER
	// unfinished budget remains unmet, so with both finite a rollout
	// only stops once both are exhausted. This disjunction is
	// intentional.
	NSteps    int
	NEpisodes int

	// Callback runs every step and at rollout boundaries; nil behaves
	// like callback.Nop
	Callback callback.Callback

	// ActionNoise is an optional external noise process added to the
	// scaled action; it is reset at every episode boundary
	ActionNoise noise.ActionNoise

	// ReplayBuffer receives every collected transition, unnormalized.
	// Optional.
	ReplayBuffer expreplay.ExperienceReplayer

	// Obs is the observation to resume from. When nil the environment
	// is reset.
	Obs mat.Vector

	// EpisodeNum is the number of episodes completed before this
	// rollout, used for the logging interval
	EpisodeNum int

	// LogInterval emits a progress record every LogInterval completed
	// episodes; non-positive disables logging
	LogInterval int
}

// Result is the outcome of one Collect call
type Result struct {
	// MeanEpisodeReward is the mean reward over the episodes completed
	// in this rollout, or zero if none completed
	MeanEpisodeReward float64

	Steps    int
	Episodes int

	// LastObs is the observation the rollout stopped on, nil when a
	// callback aborted the rollout
	LastObs mat.Vector

	// ContinueTraining is false when a callback requested a stop
	ContinueTraining bool

	// Snapshot holds the on-policy trajectory with computed returns
	// and advantages, when accumulation is enabled
	Snapshot *Snapshot
}

// Collector runs the off-policy rollout loop on a single vectorized
// environment. A Collector is not safe for concurrent use: rollouts
// are strictly sequential and every collaborator (environment, actor,
// noise, replay buffer) is mutated only by the calling goroutine.
type Collector struct {
	env          vecenv.VecEnv
	normalizeEnv *wrappers.Normalize
	actor        policy.Actor
	valueFn      policy.ValueEstimator
	episodeStats *tracker.EpisodeTracker
	log          *logger.Logger

	actionLow  mat.Vector
	actionHigh mat.Vector
	uniform    []distuv.Uniform

	config    Config
	state     SessionState
	startTime time.Time
}

// NewCollector creates a Collector. The environment must be a
// vectorized environment holding exactly one sub-environment with
// continuous actions; the value estimator is required only when
// on-policy exploration accumulation is enabled.
func NewCollector(env vecenv.VecEnv, actor policy.Actor,
	valueFn policy.ValueEstimator, log *logger.Logger,
	config Config) (*Collector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("newCollector: %v", err)
	}
	if env.NumEnvs() != 1 {
		return nil, fmt.Errorf("newCollector: rollout collection supports a "+
			"single environment, got %v", env.NumEnvs())
	}
	actionSpec := env.ActionSpec()
	if actionSpec.Cardinality != environment.Continuous {
		return nil, fmt.Errorf("newCollector: actions must be continuous")
	}
	if config.OnPolicyExploration && valueFn == nil {
		return nil, fmt.Errorf("newCollector: on-policy exploration " +
			"accumulation requires a value estimator")
	}
	if log == nil {
		log = logger.NewNop()
	}

	low := actionSpec.LowerBound
	high := actionSpec.UpperBound
	src := rand.NewSource(config.Seed)
	uniform := make([]distuv.Uniform, low.Len())
	for i := range uniform {
		uniform[i] = distuv.Uniform{
			Min: low.AtVec(i),
			Max: high.AtVec(i),
			Src: src,
		}
	}

	return &Collector{
		env:          env,
		normalizeEnv: unwrapNormalize(env),
		actor:        actor,
		valueFn:      valueFn,
		episodeStats: tracker.New(tracker.DefaultWindowSize),
		log:          log,
		actionLow:    low,
		actionHigh:   high,
		uniform:      uniform,
		config:       config,
		startTime:    time.Now(),
	}, nil
}

// StartSession prepares a fresh learning session: the wall clock
// restarts, the episode windows clear, the environment resets, and the
// global step counter optionally resets. Returns the first
// observation.
func (c *Collector) StartSession(resetTimesteps bool) mat.Vector {
	c.startTime = time.Now()
	c.episodeStats = tracker.New(tracker.DefaultWindowSize)
	if resetTimesteps {
		c.state.NumTimesteps = 0
		c.state.TotalEpisodes = 0
	}
	return c.env.Reset()[0]
}

// NumTimesteps returns the monotonic global step counter
func (c *Collector) NumTimesteps() int {
	return c.state.NumTimesteps
}

// State returns a copy of the restorable session state
func (c *Collector) State() SessionState {
	return c.state
}

// Restore replaces the session state, e.g. after loading a checkpoint
func (c *Collector) Restore(state SessionState) {
	c.state = state
}

// EpisodeStats returns the rolling episode statistics window
func (c *Collector) EpisodeStats() *tracker.EpisodeTracker {
	return c.episodeStats
}

// Collect runs one rollout. The loop continues while either budget in
// the CollectConfig remains unmet; per-step it consults the
// exploration rules, steps the environment, records episode
// statistics, and feeds the replay buffer. Any panic from the
// environment or actor propagates unmodified; the only orderly early
// exit is a callback stop, reported through the result rather than an
// error.
func (c *Collector) Collect(cfg CollectConfig) (Result, error) {
	if cfg.NSteps <= 0 && cfg.NEpisodes <= 0 {
		return Result{}, fmt.Errorf("collect: at least one of NSteps and " +
			"NEpisodes must be positive")
	}

	cb := cfg.Callback
	if cb == nil {
		cb = callback.Nop{}
	}

	obs := cfg.Obs
	if obs == nil {
		obs = c.env.Reset()[0]
	}

	// Unnormalized view of the current observation, for the replay
	// buffer
	var obsOrig mat.Vector = obs
	if c.normalizeEnv != nil {
		obsOrig = c.normalizeEnv.OriginalObs()[0]
	}

	var snap *Snapshot
	if c.config.UseSDE {
		c.actor.ResetNoise()
		if c.config.OnPolicyExploration {
			snap = NewSnapshot(c.env.ObservationSpec().Shape.Len(),
				c.actionLow.Len())
		}
	}

	cb.OnRolloutStart()

	episodeRewards := make([]float64, 0)
	totalSteps, totalEpisodes := 0, 0
	lastDone := false

	for totalSteps < cfg.NSteps || totalEpisodes < cfg.NEpisodes {
		done := false
		episodeReward := 0.0

		for !done {
			if !cb.OnStep() {
				// Orderly stop: no rollout-end hook, no snapshot
				return Result{
					Steps:            totalSteps,
					Episodes:         totalEpisodes,
					ContinueTraining: false,
				}, nil
			}

			if c.config.UseSDE && c.config.SDESampleFreq > 0 &&
				totalSteps%c.config.SDESampleFreq == 0 {
				c.actor.ResetNoise()
			}

			// Select action randomly or according to policy
			var unscaledAction *mat.VecDense
			if c.state.NumTimesteps < c.config.LearningStarts &&
				!(c.config.UseSDE && c.config.UseSDEAtWarmup) {
				unscaledAction = c.sampleActionSpace()
			} else {
				unscaledAction = c.actor.Predict(obs, !c.config.UseSDE)
			}

			scaledAction := actionutils.Scale(unscaledAction, c.actionLow,
				c.actionHigh)

			// With state-dependent exploration the scaled action can
			// leave [-1, 1]
			clippedAction := scaledAction
			if c.config.UseSDE {
				clippedAction = clipUnit(scaledAction)
			}

			if cfg.ActionNoise != nil {
				clippedAction.AddVec(clippedAction, cfg.ActionNoise.Sample())
				clippedAction = clipUnit(clippedAction)
			}

			action := actionutils.Unscale(clippedAction, c.actionLow,
				c.actionHigh)
			newObsBatch, rewards, dones, infos := c.env.Step(
				[]mat.Vector{action})
			newObs := newObsBatch[0]
			reward := rewards[0]
			done = dones[0]

			episodeReward += reward
			c.episodeStats.Record(infos, dones)

			// Unnormalized views for storage
			newObsOrig, rewardOrig := newObs, reward
			if c.normalizeEnv != nil {
				newObsOrig = c.normalizeEnv.OriginalObs()[0]
				rewardOrig = c.normalizeEnv.OriginalReward()[0]
			}

			if cfg.ReplayBuffer != nil {
				// On episode end the environment auto-resets, so the
				// true final observation comes from the step info
				nextState := newObsOrig
				if done && infos[0].TerminalObservation != nil {
					nextState = infos[0].TerminalObservation
				}

				transition := timestep.NewTransition(obsOrig, clippedAction,
					rewardOrig, nextState, done)
				if err := cfg.ReplayBuffer.Add(transition); err != nil {
					return Result{}, fmt.Errorf("collect: %v", err)
				}
			}

			if snap != nil {
				if err := snap.Store(obs, clippedAction, reward, done,
					c.valueFn.Value(obs)); err != nil {
					return Result{}, fmt.Errorf("collect: %v", err)
				}
			}

			obs = newObs
			obsOrig = newObsOrig

			c.state.NumTimesteps++
			totalSteps++
			if cfg.NSteps > 0 && totalSteps >= cfg.NSteps {
				break
			}
		}

		if done {
			totalEpisodes++
			c.state.TotalEpisodes++
			episodeRewards = append(episodeRewards, episodeReward)

			if cfg.ActionNoise != nil {
				cfg.ActionNoise.Reset()
			}

			if c.config.Verbose >= 1 && cfg.LogInterval > 0 &&
				(cfg.EpisodeNum+totalEpisodes)%cfg.LogInterval == 0 {
				c.logProgress(cfg.EpisodeNum + totalEpisodes)
			}
		}
		lastDone = done
	}

	meanReward := 0.0
	if totalEpisodes > 0 {
		meanReward = stat.Mean(episodeRewards, nil)
	}

	if snap != nil && snap.Len() > 0 {
		snap.ComputeReturns(c.config.Gamma, lastDone, c.valueFn.Value(obs))
	}

	cb.OnRolloutEnd()

	return Result{
		MeanEpisodeReward: meanReward,
		Steps:             totalSteps,
		Episodes:          totalEpisodes,
		LastObs:           obs,
		ContinueTraining:  true,
		Snapshot:          snap,
	}, nil
}

// sampleActionSpace draws a uniformly random action from the
// environment's native action bounds
func (c *Collector) sampleActionSpace() *mat.VecDense {
	sample := mat.NewVecDense(len(c.uniform), nil)
	for i := range c.uniform {
		sample.SetVec(i, c.uniform[i].Rand())
	}
	return sample
}

// logProgress emits one structured progress record
func (c *Collector) logProgress(episodes int) {
	elapsed := time.Since(c.startTime).Seconds()
	if elapsed > 0 {
		c.log.Logkv("fps", int(float64(c.state.NumTimesteps)/elapsed))
	}
	c.log.Logkv("episodes", episodes)
	if c.episodeStats.Len() > 0 {
		c.log.Logkv("ep_rew_mean", c.episodeStats.MeanReward())
		c.log.Logkv("ep_len_mean", c.episodeStats.MeanLength())
	}
	if c.episodeStats.SuccessLen() > 0 {
		c.log.Logkv("success_rate", c.episodeStats.SuccessRate())
	}
	if c.config.UseSDE {
		std := c.actor.Std()
		stds := make([]float64, std.Len())
		for i := range stds {
			stds[i] = std.AtVec(i)
		}
		c.log.Logkv("std", floatutils.SafeMean(stds))
	}
	c.log.Logkv("time_elapsed", int(elapsed))
	c.log.Logkv("total_timesteps", c.state.NumTimesteps)
	c.log.Dumpkvs()
}

// clipUnit clips a vector element-wise to [-1, 1]
func clipUnit(v *mat.VecDense) *mat.VecDense {
	clipped := mat.NewVecDense(v.Len(), nil)
	for i := 0; i < v.Len(); i++ {
		clipped.SetVec(i, floatutils.Clip(v.AtVec(i), -1, 1))
	}
	return clipped
}

// unwrapNormalize walks the wrapper chain looking for a Normalize
// wrapper
func unwrapNormalize(env vecenv.VecEnv) *wrappers.Normalize {
	for env != nil {
		if normalize, ok := env.(*wrappers.Normalize); ok {
			return normalize
		}
		wrapper, ok := env.(interface{ Unwrapped() vecenv.VecEnv })
		if !ok {
			return nil
		}
		env = wrapper.Unwrapped()
	}
	return nil
}
