package rollout

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/edbeeching/stable-baselines3/callback"
	"github.com/edbeeching/stable-baselines3/environment"
	"github.com/edbeeching/stable-baselines3/environment/vecenv"
	"github.com/edbeeching/stable-baselines3/environment/wrappers"
	"github.com/edbeeching/stable-baselines3/timestep"
)

// fakeEnv is a deterministic environment with 1-dimensional
// observations that count steps monotonically across episodes, rewards
// of ten times the observation, and fixed-length episodes
type fakeEnv struct {
	episodeLen int
	counter    float64
	stepNum    int

	// actions received, in their native scale
	actions []*mat.VecDense
}

func newFakeEnv(episodeLen int) *fakeEnv {
	return &fakeEnv{episodeLen: episodeLen}
}

func (f *fakeEnv) Reset() timestep.TimeStep {
	f.counter++
	f.stepNum = 0
	obs := mat.NewVecDense(1, []float64{f.counter})
	return timestep.New(timestep.First, 0, 0.99, obs, 0)
}

func (f *fakeEnv) Step(action mat.Vector) (timestep.TimeStep, bool) {
	recorded := mat.NewVecDense(action.Len(), nil)
	recorded.CloneFromVec(action)
	f.actions = append(f.actions, recorded)

	f.counter++
	f.stepNum++
	obs := mat.NewVecDense(1, []float64{f.counter})

	stepType := timestep.Mid
	if f.stepNum >= f.episodeLen {
		stepType = timestep.Last
	}
	step := timestep.New(stepType, f.counter*10, 0.99, obs, f.stepNum)
	return step, step.Last()
}

func (f *fakeEnv) Seed(uint64) {}

func (f *fakeEnv) ObservationSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil),
		environment.Observation, mat.NewVecDense(1, []float64{-1000}),
		mat.NewVecDense(1, []float64{1000}), environment.Continuous)
}

func (f *fakeEnv) ActionSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Action,
		mat.NewVecDense(1, []float64{-2}), mat.NewVecDense(1, []float64{2}),
		environment.Continuous)
}

func (f *fakeEnv) RewardSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Reward,
		mat.NewVecDense(1, []float64{-1000}),
		mat.NewVecDense(1, []float64{1000}), environment.Continuous)
}

func (f *fakeEnv) DiscountSpec() environment.Spec {
	bound := mat.NewVecDense(1, []float64{0.99})
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Discount,
		bound, bound, environment.Continuous)
}

// fakeActor returns a fixed action and counts interactions
type fakeActor struct {
	action            []float64
	predictCalls      int
	lastDeterministic bool
	resetCalls        int
}

func (f *fakeActor) Predict(obs mat.Vector, deterministic bool) *mat.VecDense {
	f.predictCalls++
	f.lastDeterministic = deterministic
	return mat.NewVecDense(len(f.action), append([]float64{}, f.action...))
}

func (f *fakeActor) ResetNoise() { f.resetCalls++ }

func (f *fakeActor) Std() mat.Vector {
	return mat.NewVecDense(len(f.action), nil)
}

// fakeValue is a constant state-value estimate
type fakeValue struct{ value float64 }

func (f fakeValue) Value(obs mat.Vector) float64 { return f.value }

// fakeNoise returns a fixed sample and counts resets
type fakeNoise struct {
	value  float64
	resets int
}

func (f *fakeNoise) Sample() *mat.VecDense {
	return mat.NewVecDense(1, []float64{f.value})
}

func (f *fakeNoise) Reset() { f.resets++ }

// recordingReplay captures every added transition
type recordingReplay struct {
	transitions []timestep.Transition
}

func (r *recordingReplay) Add(t timestep.Transition) error {
	r.transitions = append(r.transitions, t)
	return nil
}

func (r *recordingReplay) Sample() ([]float64, []float64, []float64,
	[]float64, []bool, error) {
	return nil, nil, nil, nil, nil, nil
}

func (r *recordingReplay) Capacity() int    { return len(r.transitions) }
func (r *recordingReplay) MaxCapacity() int { return math.MaxInt32 }
func (r *recordingReplay) MinCapacity() int { return 1 }
func (r *recordingReplay) BatchSize() int   { return 1 }

func newTestCollector(t *testing.T, env vecenv.VecEnv, actor *fakeActor,
	config Config) *Collector {
	t.Helper()
	c, err := NewCollector(env, actor, fakeValue{}, nil, config)
	if err != nil {
		t.Fatalf("newCollector: %v", err)
	}
	return c
}

func syncEnv(t *testing.T, episodeLen int) (*fakeEnv, *vecenv.Sync) {
	t.Helper()
	env := newFakeEnv(episodeLen)
	sync, err := vecenv.NewSync(env)
	if err != nil {
		t.Fatalf("newSync: %v", err)
	}
	return env, sync
}

func TestCollectorRejectsMultipleEnvs(t *testing.T) {
	sync, err := vecenv.NewSync(newFakeEnv(10), newFakeEnv(10))
	if err != nil {
		t.Fatalf("newSync: %v", err)
	}

	_, err = NewCollector(sync, &fakeActor{action: []float64{0}}, nil, nil,
		Config{Gamma: 0.99})
	if err == nil {
		t.Error("expected error for more than one environment")
	}
}

func TestCollectRequiresABudget(t *testing.T) {
	_, sync := syncEnv(t, 10)
	c := newTestCollector(t, sync, &fakeActor{action: []float64{0}},
		Config{Gamma: 0.99})

	_, err := c.Collect(CollectConfig{NSteps: Unbounded,
		NEpisodes: Unbounded})
	if err == nil {
		t.Error("expected error when both budgets are unbounded")
	}
}

func TestWarmupSamplesUniformlyThenUsesPolicy(t *testing.T) {
	env, sync := syncEnv(t, 1000)
	actor := &fakeActor{action: []float64{1.0}}
	c := newTestCollector(t, sync, actor, Config{
		LearningStarts: 10,
		Gamma:          0.99,
		Seed:           42,
	})

	result, err := c.Collect(CollectConfig{NSteps: 10, NEpisodes: Unbounded})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if result.Steps != 10 {
		t.Fatalf("expected 10 steps, got %v", result.Steps)
	}
	if actor.predictCalls != 0 {
		t.Errorf("expected no policy predictions during warm-up, got %v",
			actor.predictCalls)
	}
	for i, action := range env.actions {
		if action.AtVec(0) < -2 || action.AtVec(0) > 2 {
			t.Errorf("warm-up action %v out of bounds: %v", i,
				action.AtVec(0))
		}
	}

	// The global step counter now equals LearningStarts, so the policy
	// takes over
	result, err = c.Collect(CollectConfig{NSteps: 5, NEpisodes: Unbounded,
		Obs: result.LastObs})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if actor.predictCalls != 5 {
		t.Errorf("expected 5 policy predictions, got %v", actor.predictCalls)
	}
	if !actor.lastDeterministic {
		t.Error("expected deterministic prediction without " +
			"state-dependent exploration")
	}
}

func TestCallbackStopAbortsImmediately(t *testing.T) {
	_, sync := syncEnv(t, 1000)
	c := newTestCollector(t, sync, &fakeActor{action: []float64{0}},
		Config{Gamma: 0.99})

	calls := 0
	cb := callback.Convert{F: func() bool {
		calls++
		return calls < 3
	}}

	result, err := c.Collect(CollectConfig{NSteps: 10, NEpisodes: Unbounded,
		Callback: cb})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if result.ContinueTraining {
		t.Error("expected ContinueTraining false after callback stop")
	}
	if result.Steps != 2 {
		t.Errorf("expected 2 completed steps before the stop, got %v",
			result.Steps)
	}
	if result.LastObs != nil {
		t.Error("expected nil observation after callback stop")
	}
	if result.MeanEpisodeReward != 0 {
		t.Errorf("expected zero mean reward after callback stop, got %v",
			result.MeanEpisodeReward)
	}
}

func TestBudgetsAreDisjunctive(t *testing.T) {
	_, sync := syncEnv(t, 2)
	c := newTestCollector(t, sync, &fakeActor{action: []float64{0}},
		Config{Gamma: 0.99})

	// The step budget is met after 3 steps, but collection continues
	// until the episode budget is met too
	result, err := c.Collect(CollectConfig{NSteps: 3, NEpisodes: 2})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if result.Episodes != 2 {
		t.Errorf("expected 2 episodes, got %v", result.Episodes)
	}
	if result.Steps != 4 {
		t.Errorf("expected 4 steps, got %v", result.Steps)
	}
}

func TestActionNoiseIsClippedAndResetAtEpisodeEnd(t *testing.T) {
	env, sync := syncEnv(t, 2)
	actor := &fakeActor{action: []float64{2.0}}
	c := newTestCollector(t, sync, actor, Config{Gamma: 0.99})

	actionNoise := &fakeNoise{value: 5.0}
	result, err := c.Collect(CollectConfig{NSteps: 2, NEpisodes: Unbounded,
		ActionNoise: actionNoise})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	// The policy action 2 scales to 1; the noise pushes it to 6, which
	// clips back to 1 and unscales to the upper bound 2
	for i, action := range env.actions {
		if action.AtVec(0) != 2.0 {
			t.Errorf("step %v: expected clipped action 2, got %v", i,
				action.AtVec(0))
		}
	}

	if result.Episodes != 1 {
		t.Fatalf("expected 1 episode, got %v", result.Episodes)
	}
	if actionNoise.resets != 1 {
		t.Errorf("expected noise reset at episode end, got %v resets",
			actionNoise.resets)
	}
}

func TestSDEResamplesOnRunningStepCount(t *testing.T) {
	_, sync := syncEnv(t, 1000)
	actor := &fakeActor{action: []float64{0}}
	c := newTestCollector(t, sync, actor, Config{
		UseSDE:        true,
		SDESampleFreq: 3,
		Gamma:         0.99,
	})

	_, err := c.Collect(CollectConfig{NSteps: 7, NEpisodes: Unbounded})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	// One reset at rollout start plus resamples at running counts 0, 3,
	// and 6
	if actor.resetCalls != 4 {
		t.Errorf("expected 4 noise resets, got %v", actor.resetCalls)
	}
	if actor.lastDeterministic {
		t.Error("expected stochastic prediction with state-dependent " +
			"exploration")
	}
}

func TestReplayStoresUnnormalizedTransitions(t *testing.T) {
	_, sync := syncEnv(t, 1000)
	normalized := wrappers.NewNormalize(sync, true, true, 10.0, 10.0, 0.99,
		1e-8)
	c := newTestCollector(t, normalized, &fakeActor{action: []float64{0}},
		Config{Gamma: 0.99})

	replay := &recordingReplay{}
	_, err := c.Collect(CollectConfig{NSteps: 3, NEpisodes: Unbounded,
		ReplayBuffer: replay})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(replay.transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %v", len(replay.transitions))
	}

	// The environment counts 1, 2, 3, ... across reset and steps with
	// rewards of ten times the count; the buffer must see those raw
	// values even though the collector observes normalized ones
	for i, tr := range replay.transitions {
		wantState := float64(i + 1)
		if tr.State.AtVec(0) != wantState {
			t.Errorf("transition %v: expected raw state %v, got %v", i,
				wantState, tr.State.AtVec(0))
		}
		if tr.NextState.AtVec(0) != wantState+1 {
			t.Errorf("transition %v: expected raw next state %v, got %v", i,
				wantState+1, tr.NextState.AtVec(0))
		}
		if tr.Reward != (wantState+1)*10 {
			t.Errorf("transition %v: expected raw reward %v, got %v", i,
				(wantState+1)*10, tr.Reward)
		}
	}
}

func TestReplayUsesTerminalObservation(t *testing.T) {
	_, sync := syncEnv(t, 2)
	c := newTestCollector(t, sync, &fakeActor{action: []float64{0}},
		Config{Gamma: 0.99})

	replay := &recordingReplay{}
	_, err := c.Collect(CollectConfig{NSteps: 2, NEpisodes: Unbounded,
		ReplayBuffer: replay})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	// The episode ends on step 2 and the environment auto-resets, so
	// the returned observation is 4 but the true final observation is 3
	last := replay.transitions[1]
	if !last.Done {
		t.Fatal("expected terminal transition")
	}
	if last.NextState.AtVec(0) != 3.0 {
		t.Errorf("expected terminal observation 3, got %v",
			last.NextState.AtVec(0))
	}
}

func TestOnPolicySnapshotComputesReturns(t *testing.T) {
	_, sync := syncEnv(t, 2)
	actor := &fakeActor{action: []float64{0}}
	c := newTestCollector(t, sync, actor, Config{
		UseSDE:              true,
		OnPolicyExploration: true,
		Gamma:               0.9,
	})

	result, err := c.Collect(CollectConfig{NSteps: 4, NEpisodes: Unbounded})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	snap := result.Snapshot
	if snap == nil {
		t.Fatal("expected a snapshot with on-policy exploration")
	}
	if snap.Len() != 4 {
		t.Fatalf("expected 4 stored steps, got %v", snap.Len())
	}
	if len(snap.Returns) != 4 || len(snap.Advantages) != 4 {
		t.Fatal("expected returns and advantages for every step")
	}
	if !snap.Dones[1] || !snap.Dones[3] {
		t.Error("expected episode ends at steps 2 and 4")
	}
}

func TestSessionCountersPersistAcrossRollouts(t *testing.T) {
	_, sync := syncEnv(t, 2)
	c := newTestCollector(t, sync, &fakeActor{action: []float64{0}},
		Config{Gamma: 0.99})

	obs := c.StartSession(true)
	result, err := c.Collect(CollectConfig{NSteps: 4, NEpisodes: Unbounded,
		Obs: obs})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if _, err = c.Collect(CollectConfig{NSteps: 4, NEpisodes: Unbounded,
		Obs: result.LastObs}); err != nil {
		t.Fatalf("collect: %v", err)
	}

	state := c.State()
	if state.NumTimesteps != 8 {
		t.Errorf("expected 8 global timesteps, got %v", state.NumTimesteps)
	}
	if state.TotalEpisodes != 4 {
		t.Errorf("expected 4 total episodes, got %v", state.TotalEpisodes)
	}

	obs = c.StartSession(true)
	if obs == nil {
		t.Fatal("expected an observation from session start")
	}
	if c.NumTimesteps() != 0 {
		t.Errorf("expected counter reset, got %v", c.NumTimesteps())
	}
}
