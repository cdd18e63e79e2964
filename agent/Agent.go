// Package agent defines the interfaces of bidding agents
package agent

import (
	"github.com/admarket/bidrl/timestep"
	"gonum.org/v1/gonum/mat"
)

// Agent determines the implementation details of a bidding agent
//
// An Agent is composed of a Learner, which updates value estimates
// from observed auction transitions, and a Policy, which chooses a
// bid adjustment in each state. The Policy chooses which adjustments
// are taken, and the Learner uses the resulting transitions to update
// the Policy.
type Agent interface {
	Learner
	Policy
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}

// Learner implements a learning algorithm that defines how value
// estimates are updated.
type Learner interface {
	// Observe records a single auction transition
	Observe(t timestep.Transition) error

	// Step performs a single update to the learner
	Step() error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// Policy determines how agents select bid adjustments. The step
// argument is the global environment step count, which exploration
// schedules may depend on. The returned action is an index into the
// agent's bid adjustment set.
type Policy interface {
	SelectAction(obs *mat.VecDense, step int) (int, error)
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// A Saver is an agent whose learned parameters can be checkpointed to
// and restored from a file.
type Saver interface {
	Save(path string) error
	Load(path string) error
}
