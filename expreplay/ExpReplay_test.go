package expreplay

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/edbeeching/stable-baselines3/timestep"
)

func transition(state, action, reward float64) timestep.Transition {
	return timestep.NewTransition(mat.NewVecDense(1, []float64{state}),
		mat.NewVecDense(1, []float64{action}), reward,
		mat.NewVecDense(1, []float64{state + 1}), false)
}

func TestSampleEmptyBuffer(t *testing.T) {
	buffer, err := New(1, 10, 1, 1, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, _, _, _, _, err = buffer.Sample()
	if !IsEmptyBuffer(err) {
		t.Errorf("expected empty buffer error, got %v", err)
	}
}

func TestSampleInsufficientSamples(t *testing.T) {
	buffer, err := New(5, 10, 1, 1, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := buffer.Add(transition(1, 0, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, _, _, _, _, err = buffer.Sample()
	if !IsInsufficientSamples(err) {
		t.Errorf("expected insufficient samples error, got %v", err)
	}
}

func TestAddAndSample(t *testing.T) {
	buffer, err := New(1, 10, 1, 1, 3, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := buffer.Add(transition(float64(i), 0.5, float64(i)*2)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if buffer.Capacity() != 5 {
		t.Fatalf("expected capacity 5, got %v", buffer.Capacity())
	}

	states, actions, rewards, nextStates, dones, err := buffer.Sample()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(states) != 3 || len(actions) != 3 || len(rewards) != 3 ||
		len(nextStates) != 3 || len(dones) != 3 {
		t.Fatal("expected batches of length 3")
	}

	// Every sampled transition must be one that was added
	for i := range rewards {
		if rewards[i] != states[i]*2 {
			t.Errorf("sample %v: reward %v inconsistent with state %v", i,
				rewards[i], states[i])
		}
		if nextStates[i] != states[i]+1 {
			t.Errorf("sample %v: next state %v inconsistent with state %v",
				i, nextStates[i], states[i])
		}
	}
}

func TestOldestEvictedFirst(t *testing.T) {
	buffer, err := New(1, 3, 1, 1, 1, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := buffer.Add(transition(float64(i), 0, 0)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if buffer.Capacity() != 3 {
		t.Fatalf("expected capacity capped at 3, got %v", buffer.Capacity())
	}

	// Transitions 0 and 1 were overwritten, so only states 2, 3, 4
	// remain
	for i := 0; i < 20; i++ {
		states, _, _, _, _, err := buffer.Sample()
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if states[0] < 2 {
			t.Fatalf("sampled evicted state %v", states[0])
		}
	}
}

func TestAddRejectsWrongSizes(t *testing.T) {
	buffer, err := New(1, 10, 2, 1, 1, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	err = buffer.Add(timestep.NewTransition(mat.NewVecDense(1, nil),
		mat.NewVecDense(1, nil), 0, mat.NewVecDense(1, nil), false))
	if err == nil {
		t.Error("expected error on wrong feature size")
	}

	err = buffer.Add(timestep.NewTransition(mat.NewVecDense(2, nil),
		mat.NewVecDense(3, nil), 0, mat.NewVecDense(2, nil), false))
	if err == nil {
		t.Error("expected error on wrong action size")
	}
}

func TestNewRejectsBatchLargerThanCapacity(t *testing.T) {
	if _, err := New(1, 4, 1, 1, 8, 1); err == nil {
		t.Error("expected error when batch size exceeds capacity")
	}
}
