// Package callback defines the hooks invoked during rollout
// collection. A callback runs once per environment step and at rollout
// boundaries; returning false from OnStep requests an immediate,
// orderly stop of training. Stopping is not an error condition.
package callback

// Callback is invoked by the rollout collector
type Callback interface {
	// OnStep runs before each environment step. Returning false stops
	// training; the collector unwinds immediately and reports the stop
	// through its result.
	OnStep() bool

	// OnRolloutStart runs once before the first step of a rollout
	OnRolloutStart()

	// OnRolloutEnd runs once after the last step of a rollout
	OnRolloutEnd()
}

// Nop is a Callback that does nothing and never stops training
type Nop struct{}

func (Nop) OnStep() bool    { return true }
func (Nop) OnRolloutStart() {}
func (Nop) OnRolloutEnd()   {}

// Convert adapts a plain step function to a Callback. A nil function
// behaves like Nop: only an explicit false stops training.
type Convert struct {
	F func() bool
}

// OnStep calls the wrapped function
func (c Convert) OnStep() bool {
	if c.F == nil {
		return true
	}
	return c.F()
}

func (c Convert) OnRolloutStart() {}
func (c Convert) OnRolloutEnd()   {}

// List chains callbacks. Training continues only while every callback
// in the list agrees to continue; every callback runs on every step
// even after one has voted to stop.
type List struct {
	callbacks []Callback
}

// NewList creates a List from the argument callbacks
func NewList(callbacks ...Callback) *List {
	return &List{callbacks: callbacks}
}

// OnStep runs every callback and returns whether all want to continue
func (l *List) OnStep() bool {
	continueTraining := true
	for _, c := range l.callbacks {
		continueTraining = c.OnStep() && continueTraining
	}
	return continueTraining
}

// OnRolloutStart notifies every callback that a rollout is starting
func (l *List) OnRolloutStart() {
	for _, c := range l.callbacks {
		c.OnRolloutStart()
	}
}

// OnRolloutEnd notifies every callback that a rollout has finished
func (l *List) OnRolloutEnd() {
	for _, c := range l.callbacks {
		c.OnRolloutEnd()
	}
}
