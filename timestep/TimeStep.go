// Package timestep implements timesteps of the agent-environment
// interaction in the repeated ad auction.
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be: the first
// environmental step of an episode, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single timestep in an environment. The
// Price field holds the clearing price of the auction round that
// produced this step, i.e. the amount the auction winner actually paid,
// which may differ from the bid that was submitted.
type TimeStep struct {
	stepType    StepType
	Reward      float64
	Price       float64
	Observation *mat.VecDense
	Number      int
}

// New returns a new TimeStep
func New(t StepType, reward, price float64, obs *mat.VecDense,
	number int) TimeStep {
	return TimeStep{t, reward, price, obs, number}
}

// First returns whether a TimeStep is the first in an episode
func (t *TimeStep) First() bool {
	return t.stepType == First
}

// Mid returns whether a TimeStep is a middle step in an episode
func (t *TimeStep) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether a TimeStep is the last step in an episode
func (t *TimeStep) Last() bool {
	return t.stepType == Last
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Price: %.2f  |  " +
		"Step Number:  %v"

	return fmt.Sprintf(str, t.stepType, t.Reward, t.Price, t.Number)
}

// Transition records one agent-environment interaction: the state the
// agent acted in, the index of the bid adjustment it selected, the
// reward and observed clearing price that resulted, whether the episode
// terminated, and the state the environment transitioned to. A
// Transition is immutable once created; the replay buffer copies its
// data on insertion.
type Transition struct {
	State         *mat.VecDense
	Action        int
	Reward        float64
	ObservedPrice float64
	Done          bool
	NextState     *mat.VecDense
}

// NewTransition packages the TimeStep an action was taken in, the
// action, and the TimeStep the environment returned into a Transition.
func NewTransition(step TimeStep, action int, next TimeStep) Transition {
	return Transition{
		State:         step.Observation,
		Action:        action,
		Reward:        next.Reward,
		ObservedPrice: next.Price,
		Done:          next.Last(),
		NextState:     next.Observation,
	}
}
