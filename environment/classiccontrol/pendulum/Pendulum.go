// Package pendulum implements the pendulum classic control environment
package pendulum

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/edbeeching/stable-baselines3/environment"
	"github.com/edbeeching/stable-baselines3/timestep"
	"github.com/edbeeching/stable-baselines3/utils/floatutils"
)

// physical constants
const (
	AngleBound  float64 = math.Pi // +/- Angle bounds
	SpeedBound  float64 = 8.0     // +/- Speed bounds
	TorqueBound float64 = 2.0     // +/- Torque bounds

	MaxAction float64 = TorqueBound
	MinAction float64 = -MaxAction

	dt      float64 = 0.05
	gravity float64 = 9.8
	mass    float64 = 1.0
	length  float64 = 1.0

	ActionDims      int = 1
	ObservationDims int = 2

	// EpisodeLength is the fixed episode horizon
	EpisodeLength int = 200

	// successAngle bounds the angle from upright below which the final
	// state counts as a successful swing-up
	successAngle float64 = math.Pi / 8
)

// Pendulum implements the underpowered pendulum swing-up task. A
// pendulum hangs from a fixed base and the agent applies a bounded
// torque at the base; the torque is too weak to swing the pendulum
// straight up, so it must be rocked back and forth to gather momentum.
//
// State features are the angle of the pendulum from the positive
// y-axis, normalized to [-π, π], and the angular velocity, clipped to
// [-SpeedBound, SpeedBound]. Actions are continuous, 1-dimensional
// torques in [MinAction, MaxAction]; out-of-bounds torques are
// clipped. The reward is the negative cost of the deviation from
// upright, the angular speed, and the applied torque. Episodes run for
// a fixed EpisodeLength steps.
//
// Pendulum implements environment.Succeeder
type Pendulum struct {
	angleBounds  r1.Interval
	speedBounds  r1.Interval
	torqueBounds r1.Interval
	discount     float64
	lastStep     timestep.TimeStep

	startAngle distuv.Uniform
	startSpeed distuv.Uniform
}

// New creates a new Pendulum with the argument discount and seed
func New(discount float64, seed uint64) *Pendulum {
	p := &Pendulum{
		angleBounds:  r1.Interval{Min: -AngleBound, Max: AngleBound},
		speedBounds:  r1.Interval{Min: -SpeedBound, Max: SpeedBound},
		torqueBounds: r1.Interval{Min: -TorqueBound, Max: TorqueBound},
		discount:     discount,
	}
	p.Seed(seed)
	p.Reset()
	return p
}

// Seed reseeds the start-state distribution
func (p *Pendulum) Seed(seed uint64) {
	src := rand.NewSource(seed)
	p.startAngle = distuv.Uniform{Min: -AngleBound, Max: AngleBound, Src: src}
	p.startSpeed = distuv.Uniform{Min: -1.0, Max: 1.0, Src: src}
}

// Reset resets the environment and returns a starting state with the
// pendulum at a uniformly random angle with small angular velocity
func (p *Pendulum) Reset() timestep.TimeStep {
	state := mat.NewVecDense(ObservationDims, []float64{
		p.startAngle.Rand(),
		p.startSpeed.Rand(),
	})
	startStep := timestep.New(timestep.First, 0, p.discount, state, 0)
	p.lastStep = startStep

	return startStep
}

// Step takes one environmental step given the argument torque and
// returns the next timestep and whether that step is the last in the
// episode
func (p *Pendulum) Step(action mat.Vector) (timestep.TimeStep, bool) {
	if action.Len() != ActionDims {
		panic(fmt.Sprintf("step: actions should be 1-dimensional, got %v",
			action.Len()))
	}

	obs := p.lastStep.Observation
	th, thdot := obs.AtVec(0), obs.AtVec(1)
	torque := floatutils.Clip(action.AtVec(0), p.torqueBounds.Min,
		p.torqueBounds.Max)

	cost := th*th + 0.1*thdot*thdot + 0.001*torque*torque

	newthdot := thdot + (-3*gravity/(2*length)*math.Sin(th+math.Pi)+
		3.0/(mass*math.Pow(length, 2))*torque)*dt
	newth := th + newthdot*dt

	newthdot = floatutils.Clip(newthdot, p.speedBounds.Min, p.speedBounds.Max)
	newth = normalizeAngle(newth, p.angleBounds)

	newObs := mat.NewVecDense(ObservationDims, []float64{newth, newthdot})

	stepType := timestep.Mid
	if p.lastStep.Number+1 >= EpisodeLength {
		stepType = timestep.Last
	}

	nextStep := timestep.New(stepType, -cost, p.discount, newObs,
		p.lastStep.Number+1)
	p.lastStep = nextStep

	return nextStep, nextStep.Last()
}

// Success returns whether the pendulum ended the episode near upright
func (p *Pendulum) Success() bool {
	return math.Abs(p.lastStep.Observation.AtVec(0)) < successAngle
}

// RewardSpec returns the reward specification of the environment
func (p *Pendulum) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)

	// Largest single-step cost given the angle, speed, and torque
	// bounds
	maxCost := AngleBound*AngleBound + 0.1*SpeedBound*SpeedBound +
		0.001*TorqueBound*TorqueBound
	lowerBound := mat.NewVecDense(1, []float64{-maxCost})
	upperBound := mat.NewVecDense(1, []float64{0})

	return environment.NewSpec(shape, environment.Reward, lowerBound,
		upperBound, environment.Continuous)
}

// DiscountSpec returns the discount specification of the environment
func (p *Pendulum) DiscountSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{p.discount})

	return environment.NewSpec(shape, environment.Discount, bound, bound,
		environment.Continuous)
}

// ObservationSpec returns the observation specification of the
// environment
func (p *Pendulum) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	minObs := []float64{p.angleBounds.Min, p.speedBounds.Min}
	lowerBound := mat.NewVecDense(ObservationDims, minObs)

	maxObs := []float64{p.angleBounds.Max, p.speedBounds.Max}
	upperBound := mat.NewVecDense(ObservationDims, maxObs)

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Continuous)
}

// ActionSpec returns the action specification of the environment
func (p *Pendulum) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{MinAction})
	upperBound := mat.NewVecDense(ActionDims, []float64{MaxAction})

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Continuous)
}

// String converts the environment to a string representation
func (p *Pendulum) String() string {
	str := "Pendulum  |  theta: %v  |  theta dot: %v"
	theta := p.lastStep.Observation.AtVec(0)
	thetadot := p.lastStep.Observation.AtVec(1)

	return fmt.Sprintf(str, theta, thetadot)
}

// normalizeAngle normalizes the pendulum angle to the angle limits
func normalizeAngle(th float64, angleBounds r1.Interval) float64 {
	if angleBounds.Max != -angleBounds.Min {
		panic("angle bounds should be centered around 0")
	}

	if th > angleBounds.Max {
		divisor := int(th / angleBounds.Max)
		return -math.Pi + th - (angleBounds.Max * float64(divisor))
	} else if th < angleBounds.Min {
		divisor := int(th / angleBounds.Min)
		return math.Pi + th - (angleBounds.Min * float64(divisor))
	}
	return th
}

var _ environment.Succeeder = (*Pendulum)(nil)
