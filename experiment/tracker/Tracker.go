// Package tracker implements Trackers, which record and save data
// generated while training
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	ts "github.com/admarket/bidrl/timestep"
)

// Interface Tracker keeps track of training data and saves the data
// after training has finished
type Tracker interface {
	Track(t ts.TimeStep)
	Save() error
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loaddata: could not open data file: %v", err)
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loaddata: could not decode data: %v", err)
	}

	return data, nil
}
