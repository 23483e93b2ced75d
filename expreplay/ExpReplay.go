// Package expreplay implements a fixed-capacity experience replay
// buffer for off-policy learning. Transitions are stored unnormalized,
// exactly as applied to the environment; when the buffer is full the
// oldest transition is evicted first.
package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/edbeeching/stable-baselines3/timestep"
)

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer
	Add(t timestep.Transition) error

	// Sample samples a batch of experience from the buffer, returning
	// row-major state, action, reward, next-state, and done batches
	Sample() ([]float64, []float64, []float64, []float64, []bool, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in the
	// buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	MaxReplayCapacity int
	MinReplayCapacity int
	SampleSize        int
	FeatureSize       int
	ActionSize        int
}

// Create creates and returns the ExperienceReplayer with the specified
// Config.
func (c Config) Create(seed uint64) (ExperienceReplayer, error) {
	return New(c.MinReplayCapacity, c.MaxReplayCapacity, c.FeatureSize,
		c.ActionSize, c.SampleSize, seed)
}

// buffer implements a concrete ExperienceReplayer as a FIFO ring over
// flat backing slices
type buffer struct {
	stateBuffer     []float64
	actionBuffer    []float64
	rewardBuffer    []float64
	nextStateBuffer []float64
	doneBuffer      []bool

	// next insert position and number of stored transitions
	position int
	full     bool

	minCapacity int
	maxCapacity int
	featureSize int
	actionSize  int
	batchSize   int

	rng *rand.Rand
}

// New creates and returns a new ExperienceReplayer. The featureSize
// and actionSize parameters define the lengths of the observation and
// action vectors; batchSize is the number of transitions returned per
// Sample call.
func New(minCapacity, maxCapacity, featureSize, actionSize,
	batchSize int, seed uint64) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if maxCapacity < batchSize {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}

	return &buffer{
		stateBuffer:     make([]float64, maxCapacity*featureSize),
		actionBuffer:    make([]float64, maxCapacity*actionSize),
		rewardBuffer:    make([]float64, maxCapacity),
		nextStateBuffer: make([]float64, maxCapacity*featureSize),
		doneBuffer:      make([]bool, maxCapacity),

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,
		batchSize:   batchSize,

		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Add adds a transition to the buffer, evicting the oldest transition
// when the buffer is at maximum capacity
func (b *buffer) Add(t timestep.Transition) error {
	if t.State.Len() != b.featureSize || t.NextState.Len() != b.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)\n\thave(%v)",
			b.featureSize, t.State.Len())
	}
	if t.Action.Len() != b.actionSize {
		return fmt.Errorf("add: invalid action size \n\twant(%v)\n\thave(%v)",
			b.actionSize, t.Action.Len())
	}

	stateInd := b.position * b.featureSize
	copy(b.stateBuffer[stateInd:stateInd+b.featureSize],
		t.State.RawVector().Data)
	copy(b.nextStateBuffer[stateInd:stateInd+b.featureSize],
		t.NextState.RawVector().Data)

	actionInd := b.position * b.actionSize
	copy(b.actionBuffer[actionInd:actionInd+b.actionSize],
		t.Action.RawVector().Data)

	b.rewardBuffer[b.position] = t.Reward
	b.doneBuffer[b.position] = t.Done

	b.position++
	if b.position == b.maxCapacity {
		b.position = 0
		b.full = true
	}
	return nil
}

// Sample samples and returns a batch of transitions from the replay
// buffer uniformly at random
func (b *buffer) Sample() ([]float64, []float64, []float64, []float64,
	[]bool, error) {
	if b.Capacity() == 0 {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errEmptyBuffer,
		}
		return nil, nil, nil, nil, nil, err
	}
	if b.Capacity() < b.minCapacity {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
		return nil, nil, nil, nil, nil, err
	}

	stateBatch := make([]float64, b.batchSize*b.featureSize)
	actionBatch := make([]float64, b.batchSize*b.actionSize)
	rewardBatch := make([]float64, b.batchSize)
	nextStateBatch := make([]float64, b.batchSize*b.featureSize)
	doneBatch := make([]bool, b.batchSize)

	for i := 0; i < b.batchSize; i++ {
		index := b.rng.Intn(b.Capacity())

		stateStart := index * b.featureSize
		batchStart := i * b.featureSize
		copy(stateBatch[batchStart:batchStart+b.featureSize],
			b.stateBuffer[stateStart:stateStart+b.featureSize])
		copy(nextStateBatch[batchStart:batchStart+b.featureSize],
			b.nextStateBuffer[stateStart:stateStart+b.featureSize])

		actionStart := index * b.actionSize
		batchStart = i * b.actionSize
		copy(actionBatch[batchStart:batchStart+b.actionSize],
			b.actionBuffer[actionStart:actionStart+b.actionSize])

		rewardBatch[i] = b.rewardBuffer[index]
		doneBatch[i] = b.doneBuffer[index]
	}

	return stateBatch, actionBatch, rewardBatch, nextStateBatch, doneBatch, nil
}

// Capacity returns the current number of transitions in the buffer
func (b *buffer) Capacity() int {
	if b.full {
		return b.maxCapacity
	}
	return b.position
}

// MaxCapacity returns the maximum number of transitions that are
// allowed in the buffer
func (b *buffer) MaxCapacity() int {
	return b.maxCapacity
}

// MinCapacity returns the minimum number of transitions required in
// the buffer before sampling is allowed
func (b *buffer) MinCapacity() int {
	return b.minCapacity
}

// BatchSize returns the number of samples returned by Sample()
func (b *buffer) BatchSize() int {
	return b.batchSize
}

// String returns the string representation of the buffer
func (b *buffer) String() string {
	return fmt.Sprintf("ExperienceReplay | Capacity: %v/%v | Batch: %v",
		b.Capacity(), b.maxCapacity, b.batchSize)
}
