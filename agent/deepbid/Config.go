package deepbid

import (
	"fmt"

	"github.com/admarket/bidrl/initwfn"
	"github.com/admarket/bidrl/network"
	"github.com/admarket/bidrl/solver"
)

// Config implements a configuration for a DeepBid agent
type Config struct {
	// Network architecture. The trunk is shared by both heads, each
	// head appends its hidden layers and a linear output layer.
	TrunkLayers       []int                 // Layer sizes of the shared trunk
	TrunkBiases       []bool                // Whether each trunk layer has a bias
	TrunkActivations  []*network.Activation // Activation of each trunk layer
	QHiddenLayers     []int                 // Hidden layer sizes of the Q-head
	PriceHiddenLayers []int                 // Hidden layer sizes of the price head

	Solver  *solver.Solver   // Solver for learning weights
	InitWFn *initwfn.InitWFn // Initialization algorithm for weights

	// Exploration schedule of the behaviour policy
	EpsilonStart      float64
	EpsilonEnd        float64
	EpsilonDecaySteps int

	Gamma float64 // Discount factor

	// Experience replay parameters
	ReplayCapacity int
	MinReplaySize  int
	BatchSize      int

	// Relative contribution of each head to the combined loss
	WeightDQNLoss   float64
	WeightPriceLoss float64

	// Learning steps between target network synchronizations
	TargetUpdateInterval int
}

// DefaultConfig returns a Config with default hyperparameter values
func DefaultConfig() Config {
	adam, err := solver.NewDefaultAdam(5e-4, 32)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: could not create solver: %v", err))
	}
	glorot, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: could not create init: %v", err))
	}

	return Config{
		TrunkLayers:       []int{128, 64},
		TrunkBiases:       []bool{true, true},
		TrunkActivations:  []*network.Activation{network.ReLU(), network.ReLU()},
		QHiddenLayers:     []int{64},
		PriceHiddenLayers: []int{32},

		Solver:  adam,
		InitWFn: glorot,

		EpsilonStart:      1.0,
		EpsilonEnd:        0.01,
		EpsilonDecaySteps: 20000,

		Gamma: 0.75,

		ReplayCapacity: 50000,
		MinReplaySize:  1000,
		BatchSize:      32,

		WeightDQNLoss:   1.0,
		WeightPriceLoss: 1.0,

		TargetUpdateInterval: 1000,
	}
}

// Validate checks whether the Config is valid, returning an error
// describing the first invalid hyperparameter found.
func (c Config) Validate() error {
	if c.Solver == nil {
		return fmt.Errorf("config: no solver")
	}
	if c.InitWFn == nil {
		return fmt.Errorf("config: no weight initializer")
	}
	if len(c.TrunkLayers) == 0 {
		return fmt.Errorf("config: trunk must have at least one layer")
	}
	if len(c.TrunkLayers) != len(c.TrunkBiases) ||
		len(c.TrunkLayers) != len(c.TrunkActivations) {
		return fmt.Errorf("config: invalid trunk architecture "+
			"\n\twant(%v biases and activations)\n\thave(%v, %v)",
			len(c.TrunkLayers), len(c.TrunkBiases), len(c.TrunkActivations))
	}
	if c.Gamma < 0.0 || c.Gamma > 1.0 {
		return fmt.Errorf("config: discount must be in [0, 1] \n\thave(%v)",
			c.Gamma)
	}
	if c.WeightDQNLoss < 0.0 || c.WeightPriceLoss < 0.0 {
		return fmt.Errorf("config: loss weights cannot be negative "+
			"\n\thave(%v, %v)", c.WeightDQNLoss, c.WeightPriceLoss)
	}
	if c.TargetUpdateInterval <= 0 {
		return fmt.Errorf("config: target update interval must be "+
			"positive \n\thave(%v)", c.TargetUpdateInterval)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive "+
			"\n\thave(%v)", c.BatchSize)
	}
	if c.ReplayCapacity < c.MinReplaySize {
		return fmt.Errorf("config: replay capacity cannot be below the "+
			"minimum replay size \n\twant(>= %v)\n\thave(%v)",
			c.MinReplaySize, c.ReplayCapacity)
	}

	// Schedule bounds are checked when the schedule is constructed
	return nil
}
