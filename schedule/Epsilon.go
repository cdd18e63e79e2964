// Package schedule implements exploration schedules for value-based
// bidding agents.
package schedule

import "fmt"

// Linear is an epsilon schedule that decays linearly from a starting
// value to an ending value over a fixed number of environment steps,
// after which it stays clamped at the ending value. A Linear schedule
// is a pure function of the step count and holds no mutable state, so
// the same schedule value can be recomputed for any step.
type Linear struct {
	start      float64
	end        float64
	decaySteps int
}

// NewLinear returns a new Linear epsilon schedule decaying from start
// to end over decaySteps environment steps.
func NewLinear(start, end float64, decaySteps int) (Linear, error) {
	if start < 0 || start > 1 {
		return Linear{}, fmt.Errorf("newlinear: start must be in [0, 1] "+
			"\n\thave(%v)", start)
	}
	if end < 0 || end > start {
		return Linear{}, fmt.Errorf("newlinear: end must be in [0, start] "+
			"\n\thave(%v)", end)
	}
	if decaySteps <= 0 {
		return Linear{}, fmt.Errorf("newlinear: decaySteps must be > 0 "+
			"\n\thave(%v)", decaySteps)
	}

	return Linear{start: start, end: end, decaySteps: decaySteps}, nil
}

// Value returns the exploration probability at the given step. The
// returned value is non-increasing in step and always lies in
// [end, start].
func (l Linear) Value(step int) float64 {
	if step >= l.decaySteps {
		return l.end
	}
	if step <= 0 {
		return l.start
	}
	return l.start - (l.start-l.end)*float64(step)/float64(l.decaySteps)
}

// Start returns the schedule's starting epsilon
func (l Linear) Start() float64 {
	return l.start
}

// End returns the schedule's final epsilon
func (l Linear) End() float64 {
	return l.end
}
