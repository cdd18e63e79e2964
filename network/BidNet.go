package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// BidNet implements the multi-task value network of the deep Q bidding
// agent. A shared trunk encodes the auction state; two heads read the
// encoding:
//
//	          ╭─→ Q-head     ─→ one value per bid adjustment
//	Input ─→ Trunk
//	          ╰─→ Price-head ─→ predicted clearing price
//
// Because both heads share the trunk, gradient updates from a combined
// loss shape one state representation consistently. Prediction()[0]
// and Output()[0] refer to the Q-head, Prediction()[1] and Output()[1]
// to the price head.
type BidNet struct {
	g     *G.ExprGraph
	input *G.Node

	trunk     []Layer
	qHead     []Layer
	priceHead []Layer

	numActions int
	numInputs  int
	batchSize  int

	// Architecture data, needed for cloning and gobbing
	trunkSizes       []int
	trunkBiases      []bool
	trunkActivations []*Activation
	qHiddenSizes     []int
	priceHiddenSizes []int

	learnables G.Nodes
	model      []G.ValueGrad

	qValues  *G.Node
	price    *G.Node
	qVal     G.Value
	priceVal G.Value
}

// NewBidNet creates and returns a new BidNet and populates g with its
// computational graph.
//
// The trunk has len(trunkSizes) layers; trunkSizes[i], trunkBiases[i]
// and trunkActivations[i] describe layer i. Each head consists of
// hidden layers of the given sizes with bias units and ReLU
// activations, closed by a final linear layer producing actions
// outputs for the Q-head and a single output for the price head. The
// init parameter determines the weight initialization scheme.
func NewBidNet(features, batch, actions int, g *G.ExprGraph,
	trunkSizes []int, trunkBiases []bool, trunkActivations []*Activation,
	qHiddenSizes, priceHiddenSizes []int,
	init G.InitWFn) (NeuralNet, error) {
	if features < 1 {
		return nil, fmt.Errorf("newbidnet: features must be >= 1 "+
			"\n\thave(%v)", features)
	}
	if batch < 1 {
		return nil, fmt.Errorf("newbidnet: batch must be >= 1 \n\thave(%v)",
			batch)
	}
	if actions < 1 {
		return nil, fmt.Errorf("newbidnet: action set cannot be empty")
	}
	if len(trunkSizes) == 0 {
		return nil, fmt.Errorf("newbidnet: trunk must have at least one " +
			"layer")
	}
	if len(trunkSizes) != len(trunkActivations) {
		return nil, fmt.Errorf("newbidnet: invalid number of trunk "+
			"activations \n\twant(%d)\n\thave(%d)", len(trunkSizes),
			len(trunkActivations))
	}
	if len(trunkSizes) != len(trunkBiases) {
		return nil, fmt.Errorf("newbidnet: invalid number of trunk biases"+
			"\n\twant(%d)\n\thave(%d)", len(trunkSizes), len(trunkBiases))
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	trunk := newFCLayers(g, "Trunk", features, trunkSizes, trunkBiases,
		trunkActivations, init)
	trunkOut := trunkSizes[len(trunkSizes)-1]

	qHead := newFCLayers(g, "QHead", trunkOut,
		headSizes(qHiddenSizes, actions),
		headBiases(qHiddenSizes),
		headActivations(qHiddenSizes),
		init)
	priceHead := newFCLayers(g, "PriceHead", trunkOut,
		headSizes(priceHiddenSizes, 1),
		headBiases(priceHiddenSizes),
		headActivations(priceHiddenSizes),
		init)

	net := &BidNet{
		g:                g,
		input:            input,
		trunk:            trunk,
		qHead:            qHead,
		priceHead:        priceHead,
		numActions:       actions,
		numInputs:        features,
		batchSize:        batch,
		trunkSizes:       trunkSizes,
		trunkBiases:      trunkBiases,
		trunkActivations: trunkActivations,
		qHiddenSizes:     qHiddenSizes,
		priceHiddenSizes: priceHiddenSizes,
	}

	if err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newbidnet: could not compute forward "+
			"pass: %v", err)
	}

	return net, nil
}

// headSizes appends the final output layer to a head's hidden sizes
func headSizes(hidden []int, outputs int) []int {
	sizes := make([]int, 0, len(hidden)+1)
	sizes = append(sizes, hidden...)
	return append(sizes, outputs)
}

// headBiases returns the bias layout of a head: every layer gets a
// bias unit
func headBiases(hidden []int) []bool {
	biases := make([]bool, len(hidden)+1)
	for i := range biases {
		biases[i] = true
	}
	return biases
}

// headActivations returns the activation layout of a head: ReLU hidden
// layers closed by a linear output layer
func headActivations(hidden []int) []*Activation {
	acts := make([]*Activation, len(hidden)+1)
	for i := range hidden {
		acts[i] = ReLU()
	}
	acts[len(hidden)] = Identity()
	return acts
}

// fwd performs the forward pass of the BidNet on the input node
func (b *BidNet) fwd(input *G.Node) error {
	pred := input
	var err error
	for i, l := range b.trunk {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"trunk layer %v: %v", i, err)
		}
	}

	q := pred
	for i, l := range b.qHead {
		if q, err = l.fwd(q); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"Q-head layer %v: %v", i, err)
		}
	}

	price := pred
	for i, l := range b.priceHead {
		if price, err = l.fwd(price); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"price-head layer %v: %v", i, err)
		}
	}

	b.qValues = q
	b.price = price
	G.Read(b.qValues, &b.qVal)
	G.Read(b.price, &b.priceVal)

	return nil
}

// Graph returns the computational graph of the BidNet
func (b *BidNet) Graph() *G.ExprGraph {
	return b.g
}

// CloneWithBatch clones the BidNet onto a fresh graph with a new input
// batch size. The clone owns an independent value-copy of the weights:
// later updates to either network never alias the other.
func (b *BidNet) CloneWithBatch(batchSize int) (NeuralNet, error) {
	g := G.NewGraph()
	clone, err := NewBidNet(b.numInputs, batchSize, b.numActions, g,
		b.trunkSizes, b.trunkBiases, b.trunkActivations, b.qHiddenSizes,
		b.priceHiddenSizes, G.Zeroes())
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone: %v", err)
	}

	if err := clone.Set(b); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not copy weights: %v",
			err)
	}

	return clone, nil
}

// BatchSize returns the number of observations per input batch
func (b *BidNet) BatchSize() int {
	return b.batchSize
}

// Features returns the length of a single observation vector
func (b *BidNet) Features() int {
	return b.numInputs
}

// Outputs returns the number of values predicted per head: one Q-value
// per bid adjustment and a single predicted clearing price.
func (b *BidNet) Outputs() []int {
	return []int{b.numActions, 1}
}

// SetInput sets the value of the input node before running the forward
// pass.
func (b *BidNet) SetInput(input []float64) error {
	if len(input) != b.numInputs*b.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", b.numInputs*b.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(b.input.Shape()...),
	)
	return G.Let(b.input, inputTensor)
}

// Set sets the weights of the BidNet to be equal to the weights of
// another network of identical architecture. The weights are
// value-copied: the two networks never share parameter storage.
func (b *BidNet) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := b.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: incompatible networks \n\twant(%v "+
			"learnables)\n\thave(%v)", len(nodes), len(sourceNodes))
	}

	for i, destLearnable := range nodes {
		sourceLearnable := sourceNodes[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// Learnables returns the learnable nodes of the BidNet. The order is
// fixed: trunk layers first, then Q-head layers, then price-head
// layers, weights before biases within each layer.
func (b *BidNet) Learnables() G.Nodes {
	// Lazy instantiation
	if b.learnables == nil {
		b.learnables = b.computeLearnables()
	}
	return b.learnables
}

func (b *BidNet) computeLearnables() G.Nodes {
	layers := make([]Layer, 0,
		len(b.trunk)+len(b.qHead)+len(b.priceHead))
	layers = append(layers, b.trunk...)
	layers = append(layers, b.qHead...)
	layers = append(layers, b.priceHead...)

	learnables := make([]*G.Node, 0, 2*len(layers))
	for _, l := range layers {
		learnables = append(learnables, l.Weights())
		if bias := l.Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return G.Nodes(learnables)
}

// Model returns the learnable nodes with their gradients.
func (b *BidNet) Model() []G.ValueGrad {
	// Lazy instantiation
	if b.model == nil {
		b.model = b.computeModel()
	}
	return b.model
}

func (b *BidNet) computeModel() []G.ValueGrad {
	model := make([]G.ValueGrad, 0, len(b.Learnables()))
	for _, node := range b.Learnables() {
		model = append(model, node)
	}
	return model
}

// Prediction returns the output nodes of the BidNet: the Q-head node
// followed by the price-head node.
func (b *BidNet) Prediction() []*G.Node {
	return []*G.Node{b.qValues, b.price}
}

// Output returns the values of the Q-head and price head from the last
// run of the computational graph.
func (b *BidNet) Output() []G.Value {
	return []G.Value{b.qVal, b.priceVal}
}

// GobEncode implements the gob.GobEncoder interface
func (b *BidNet) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	fields := []interface{}{b.numInputs, b.batchSize, b.numActions,
		b.trunkSizes, b.trunkBiases, b.qHiddenSizes, b.priceHiddenSizes}
	for i, field := range fields {
		if err := enc.Encode(field); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode field "+
				"%v: %v", i, err)
		}
	}
	if err := enc.Encode(b.trunkActivations); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode trunk "+
			"activations: %v", err)
	}

	for i, learnable := range b.Learnables() {
		t := learnable.Value().(*tensor.Dense)
		if err := enc.Encode([]int(t.Shape())); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode shape of "+
				"learnable %v: %v", i, err)
		}
		if err := enc.Encode(t.Data().([]float64)); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode learnable "+
				"%v: %v", i, err)
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (b *BidNet) GobDecode(in []byte) error {
	buf := bytes.NewReader(in)
	dec := gob.NewDecoder(buf)

	var features, batch, actions int
	var trunkSizes, qHiddenSizes, priceHiddenSizes []int
	var trunkBiases []bool
	var trunkActivations []*Activation

	fields := []interface{}{&features, &batch, &actions, &trunkSizes,
		&trunkBiases, &qHiddenSizes, &priceHiddenSizes}
	for i, field := range fields {
		if err := dec.Decode(field); err != nil {
			return fmt.Errorf("gobdecode: could not decode field %v: %v", i,
				err)
		}
	}
	if err := dec.Decode(&trunkActivations); err != nil {
		return fmt.Errorf("gobdecode: could not decode trunk "+
			"activations: %v", err)
	}

	g := G.NewGraph()
	newNet, err := NewBidNet(features, batch, actions, g, trunkSizes,
		trunkBiases, trunkActivations, qHiddenSizes, priceHiddenSizes,
		G.Zeroes())
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct network: %v", err)
	}
	net := newNet.(*BidNet)

	for i, learnable := range net.Learnables() {
		var shape []int
		if err := dec.Decode(&shape); err != nil {
			return fmt.Errorf("gobdecode: could not decode shape of "+
				"learnable %v: %v", i, err)
		}
		var data []float64
		if err := dec.Decode(&data); err != nil {
			return fmt.Errorf("gobdecode: could not decode learnable "+
				"%v: %v", i, err)
		}
		t := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
		if err := G.Let(learnable, t); err != nil {
			return fmt.Errorf("gobdecode: could not set learnable %v: %v",
				i, err)
		}
	}

	*b = *net
	return nil
}
