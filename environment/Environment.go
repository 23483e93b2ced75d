// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/edbeeching/stable-baselines3/timestep"
)

// Cardinality indicates whether the associated type is continuous or
// discrete
type Cardinality int

const (
	Discrete Cardinality = iota
	Continuous
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an action, an observation, a discount, or a
// reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

// Spec implements a specification, which tells the type, shape, and
// bounds of an action, observation, discount, or reward
type Spec struct {
	Shape      mat.Vector
	Type       SpecType
	LowerBound mat.Vector
	UpperBound mat.Vector
	Cardinality
}

// NewSpec constructs a new Spec
func NewSpec(shape mat.Vector, t SpecType, lowerBound, upperBound mat.Vector,
	c Cardinality) Spec {
	return Spec{shape, t, lowerBound, upperBound, c}
}

// Environment implements a single simulated environment
type Environment interface {
	Reset() timestep.TimeStep // Resets between episodes
	Step(action mat.Vector) (timestep.TimeStep, bool)
	Seed(uint64)
	RewardSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}

// Succeeder is an Environment that can report whether the episode that
// just ended reached its goal. Vectorized wrappers surface this flag
// through the step infos on terminal steps.
type Succeeder interface {
	Environment
	Success() bool
}
