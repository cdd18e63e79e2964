// Package network implements the neural network function approximators
// used by the bidding agents. Networks populate a Gorgonia
// computational graph; an external VM runs the graph.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet describes a neural network function approximator. A
// NeuralNet may have multiple output heads; Prediction returns one
// node per head and Output the corresponding values from the last run
// of the network's computational graph.
type NeuralNet interface {
	// Graph returns the computational graph the network populates
	Graph() *G.ExprGraph

	// CloneWithBatch returns a network of identical architecture with
	// an independently owned copy of the weights on a fresh graph,
	// accepting inputs of the given batch size
	CloneWithBatch(int) (NeuralNet, error)

	// BatchSize returns the number of observations per input batch
	BatchSize() int

	// Features returns the length of a single observation vector
	Features() int

	// Outputs returns the number of values predicted by each output
	// head
	Outputs() []int

	// SetInput sets the value of the input node before the graph is
	// run
	SetInput([]float64) error

	// Set value-copies the weights of another network of identical
	// architecture into this network
	Set(NeuralNet) error

	// Learnables returns the learnable nodes of the network
	Learnables() G.Nodes

	// Model returns the learnable nodes with their gradients
	Model() []G.ValueGrad

	// Prediction returns the output node of each head
	Prediction() []*G.Node

	// Output returns the value of each head from the last run of the
	// graph
	Output() []G.Value
}
