// Package environment outlines the interfaces needed to implement
// concrete auction environments
package environment

import (
	"github.com/admarket/bidrl/timestep"
)

// Environment implements a simulated sequence of ad auctions. An
// episode runs from Reset until a returned timestep reports Last,
// which happens when the campaign budget is exhausted or the auction
// horizon is reached.
type Environment interface {
	// Reset resets the environment between episodes and returns the
	// first timestep of the new episode
	Reset() timestep.TimeStep

	// Step takes an action index in the environment's bid adjustment
	// set and returns the resulting timestep
	Step(action int) (timestep.TimeStep, error)

	ObservationSpec() Spec
	ActionSpec() Spec
}
