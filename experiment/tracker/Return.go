package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	ts "github.com/admarket/bidrl/timestep"
)

// Return tracks and saves the episodic return. When an environment
// returns a TimeStep, this Tracker extracts the reward and accumulates
// the return of each episode.
//
// Note: An episode must finish for this Tracker to record its data.
// If the last episode does not finish, that episode's return is not
// saved.
type Return struct {
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker
func NewReturn(filename string) Tracker {
	return &Return{filename: filename}
}

// Track accumulates the reward seen on a timestep. When the timestep
// is the last of its episode, the accumulated return is recorded and
// accumulation restarts for the next episode.
func (r *Return) Track(step ts.TimeStep) {
	r.currentReturn += step.Reward
	if step.Last() {
		r.episodeReturns = append(r.episodeReturns, r.currentReturn)
		r.currentReturn = 0.0
	}
}

// Save saves the episodic returns to disk
func (r *Return) Save() error {
	file, err := os.Create(r.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(r.episodeReturns); err != nil {
		return fmt.Errorf("save: could not encode return data: %v", err)
	}
	return nil
}
