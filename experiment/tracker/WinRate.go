package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	ts "github.com/admarket/bidrl/timestep"
	"github.com/admarket/bidrl/utils/window"
)

// WinRate tracks and saves the rolling win rate of the campaign. An
// episode counts as won when its cumulative reward is positive,
// meaning the value of the impressions won exceeded what was paid for
// them. The saved data holds, for each finished episode, the fraction
// of episodes won within the rolling window at that point.
type WinRate struct {
	currentReturn float64
	outcomes      *window.Window
	winRates      []float64
	filename      string
}

// NewWinRate creates and returns a new *WinRate Tracker computing the
// win rate over the given number of most recent episodes.
func NewWinRate(filename string, windowSize int) (Tracker, error) {
	outcomes, err := window.New(windowSize)
	if err != nil {
		return nil, fmt.Errorf("newwinrate: %v", err)
	}
	return &WinRate{outcomes: outcomes, filename: filename}, nil
}

// Track accumulates the reward seen on a timestep. When the timestep
// is the last of its episode, the episode outcome enters the rolling
// window and the current win rate is recorded.
func (w *WinRate) Track(step ts.TimeStep) {
	w.currentReturn += step.Reward
	if !step.Last() {
		return
	}

	if w.currentReturn > 0 {
		w.outcomes.Push(1.0)
	} else {
		w.outcomes.Push(0.0)
	}
	w.winRates = append(w.winRates, w.outcomes.Mean())
	w.currentReturn = 0.0
}

// Save saves the rolling win rates to disk
func (w *WinRate) Save() error {
	file, err := os.Create(w.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(w.winRates); err != nil {
		return fmt.Errorf("save: could not encode win rate data: %v", err)
	}
	return nil
}
