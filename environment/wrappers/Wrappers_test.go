package wrappers

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/edbeeching/stable-baselines3/environment"
	"github.com/edbeeching/stable-baselines3/timestep"
)

// scriptedVec is a vectorized environment of one sub-environment that
// replays a fixed schedule of observations, rewards, and done flags
type scriptedVec struct {
	obs     []float64
	rewards []float64
	dones   []bool
	cursor  int
}

func (s *scriptedVec) Reset() []mat.Vector {
	s.cursor = 0
	return []mat.Vector{mat.NewVecDense(1, []float64{s.obs[0]})}
}

func (s *scriptedVec) Step(actions []mat.Vector) ([]mat.Vector, []float64,
	[]bool, []timestep.Info) {
	s.cursor++
	obs := []mat.Vector{mat.NewVecDense(1, []float64{s.obs[s.cursor]})}
	return obs, []float64{s.rewards[s.cursor-1]}, []bool{s.dones[s.cursor-1]},
		make([]timestep.Info, 1)
}

func (s *scriptedVec) NumEnvs() int { return 1 }
func (s *scriptedVec) Seed(uint64)  {}

func (s *scriptedVec) ObservationSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil),
		environment.Observation, mat.NewVecDense(1, []float64{-100}),
		mat.NewVecDense(1, []float64{100}), environment.Continuous)
}

func (s *scriptedVec) ActionSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Action,
		mat.NewVecDense(1, []float64{-1}), mat.NewVecDense(1, []float64{1}),
		environment.Continuous)
}

var noAction = []mat.Vector{mat.NewVecDense(1, nil)}

func TestMonitorInjectsEpisodeSummary(t *testing.T) {
	env := &scriptedVec{
		obs:     []float64{0, 1, 2, 3, 4},
		rewards: []float64{1, 2, 3, 4},
		dones:   []bool{false, false, true, false},
	}
	monitor := NewMonitor(env)
	monitor.Reset()

	for i := 0; i < 2; i++ {
		_, _, _, infos := monitor.Step(noAction)
		if infos[0].Episode != nil {
			t.Fatalf("step %v: unexpected episode summary", i)
		}
	}

	_, _, dones, infos := monitor.Step(noAction)
	if !dones[0] {
		t.Fatal("expected episode end on step 3")
	}
	if infos[0].Episode == nil {
		t.Fatal("expected episode summary on terminal step")
	}
	if infos[0].Episode.Reward != 6.0 {
		t.Errorf("expected episode reward 6, got %v", infos[0].Episode.Reward)
	}
	if infos[0].Episode.Length != 3 {
		t.Errorf("expected episode length 3, got %v", infos[0].Episode.Length)
	}

	// Accumulators restart for the next episode
	_, _, _, infos = monitor.Step(noAction)
	if infos[0].Episode != nil {
		t.Error("expected no summary after accumulators reset")
	}
}

func TestNormalizeKeepsOriginalValues(t *testing.T) {
	env := &scriptedVec{
		obs:     []float64{10, 20, 30},
		rewards: []float64{100, 200},
		dones:   []bool{false, false},
	}
	normalize := NewNormalize(env, true, true, 10.0, 10.0, 0.99, 1e-8)
	normalize.Reset()

	obs, rewards, _, _ := normalize.Step(noAction)

	if normalize.OriginalObs()[0].AtVec(0) != 20.0 {
		t.Errorf("expected original observation 20, got %v",
			normalize.OriginalObs()[0].AtVec(0))
	}
	if normalize.OriginalReward()[0] != 100.0 {
		t.Errorf("expected original reward 100, got %v",
			normalize.OriginalReward()[0])
	}

	// The running statistics have seen the data, so the normalized
	// values differ from the raw ones
	if obs[0].AtVec(0) == 20.0 {
		t.Error("expected normalized observation to differ from raw")
	}
	if rewards[0] == 100.0 {
		t.Error("expected normalized reward to differ from raw")
	}
	if math.Abs(obs[0].AtVec(0)) > 10.0 {
		t.Errorf("normalized observation exceeds clip bound: %v",
			obs[0].AtVec(0))
	}
	if math.Abs(rewards[0]) > 10.0 {
		t.Errorf("normalized reward exceeds clip bound: %v", rewards[0])
	}
}

func TestNormalizeFrozenOutsideTraining(t *testing.T) {
	env := &scriptedVec{
		obs:     []float64{1, 2, 3},
		rewards: []float64{1, 1},
		dones:   []bool{false, false},
	}
	normalize := NewNormalize(env, true, false, 10.0, 10.0, 0.99, 1e-8)
	normalize.Reset()
	normalize.Step(noAction)

	mean := normalize.obsRMS.Mean()[0]
	normalize.SetTraining(false)
	normalize.Step(noAction)

	if normalize.obsRMS.Mean()[0] != mean {
		t.Error("expected frozen statistics outside training")
	}
}

func TestRunningMeanStd(t *testing.T) {
	rms := NewRunningMeanStd(1)

	samples := []float64{1, 2, 3, 4, 5}
	for _, s := range samples {
		rms.Update([]float64{s})
	}

	if math.Abs(rms.Mean()[0]-3.0) > 1e-3 {
		t.Errorf("expected mean near 3, got %v", rms.Mean()[0])
	}
	// Population variance of 1..5 is 2
	if math.Abs(rms.Var()[0]-2.0) > 1e-2 {
		t.Errorf("expected variance near 2, got %v", rms.Var()[0])
	}
}

func TestUnwrappedChain(t *testing.T) {
	env := &scriptedVec{obs: []float64{0}, rewards: nil, dones: nil}
	monitor := NewMonitor(env)
	normalize := NewNormalize(monitor, true, true, 10, 10, 0.99, 1e-8)

	if normalize.Unwrapped().(*Monitor) != monitor {
		t.Error("expected normalize to unwrap to the monitor")
	}
	if monitor.Unwrapped().(*scriptedVec) != env {
		t.Error("expected monitor to unwrap to the base environment")
	}
}
