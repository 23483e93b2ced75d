package main

import (
	"fmt"
	"os"

	"github.com/edbeeching/stable-baselines3/callback"
	"github.com/edbeeching/stable-baselines3/environment/classiccontrol/pendulum"
	"github.com/edbeeching/stable-baselines3/environment/vecenv"
	"github.com/edbeeching/stable-baselines3/environment/wrappers"
	"github.com/edbeeching/stable-baselines3/expreplay"
	"github.com/edbeeching/stable-baselines3/logger"
	"github.com/edbeeching/stable-baselines3/noise"
	"github.com/edbeeching/stable-baselines3/policy"
	"github.com/edbeeching/stable-baselines3/rollout"
)

func main() {
	var seed uint64 = 192382
	gamma := 0.99

	// Create the environment with monitoring innermost and
	// normalization outermost
	env := pendulum.New(gamma, seed)
	sync, err := vecenv.NewSync(env)
	if err != nil {
		panic(err)
	}
	var venv vecenv.VecEnv = sync
	venv = wrappers.NewMonitor(venv)
	venv = wrappers.NewNormalize(venv, true, true, 10.0, 10.0, gamma, 1e-8)

	obsDim := venv.ObservationSpec().Shape.Len()
	actDim := venv.ActionSpec().Shape.Len()

	// Create the exploration policy and value estimator
	actor := policy.NewLinearGaussian(obsDim, actDim, seed)
	valueFn := policy.NewLinearValue(obsDim)

	// Create the replay buffer
	replayConfig := expreplay.Config{
		MaxReplayCapacity: 100_000,
		MinReplayCapacity: 100,
		SampleSize:        64,
		FeatureSize:       obsDim,
		ActionSize:        actDim,
	}
	replay, err := replayConfig.Create(seed)
	if err != nil {
		panic(err)
	}

	mu := make([]float64, actDim)
	sigma := make([]float64, actDim)
	for i := range sigma {
		sigma[i] = 0.1
	}
	actionNoise := noise.NewNormal(mu, sigma, seed)

	collector, err := rollout.NewCollector(venv, actor, valueFn,
		logger.New(os.Stdout), rollout.Config{
			LearningStarts: 100,
			Gamma:          gamma,
			Verbose:        1,
			Seed:           seed,
		})
	if err != nil {
		panic(err)
	}

	obs := collector.StartSession(true)
	episodeNum := 0

	// Alternate collection and replay sampling until the step budget
	// is spent
	for collector.NumTimesteps() < 20_000 {
		result, err := collector.Collect(rollout.CollectConfig{
			NSteps:       rollout.Unbounded,
			NEpisodes:    1,
			Callback:     callback.Nop{},
			ActionNoise:  actionNoise,
			ReplayBuffer: replay,
			Obs:          obs,
			EpisodeNum:   episodeNum,
			LogInterval:  4,
		})
		if err != nil {
			panic(err)
		}
		if !result.ContinueTraining {
			break
		}
		obs = result.LastObs
		episodeNum += result.Episodes

		if replay.Capacity() >= replay.MinCapacity() {
			// A learner would fit on this batch; here the sample just
			// demonstrates the replay path
			if _, _, _, _, _, err := replay.Sample(); err != nil {
				panic(err)
			}
		}
	}

	fmt.Printf("collected %v steps over %v episodes, mean reward %.2f\n",
		collector.NumTimesteps(), episodeNum,
		collector.EpisodeStats().MeanReward())
}
