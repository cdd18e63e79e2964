// Package deepbid implements a deep Q-learning bidding agent with a
// multi-task value network.
package deepbid

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/admarket/bidrl/expreplay"
	"github.com/admarket/bidrl/network"
	"github.com/admarket/bidrl/schedule"
	ts "github.com/admarket/bidrl/timestep"
	"github.com/admarket/bidrl/utils/floatutils"
)

// DeepBid implements deep Q-learning over a discrete set of bid
// adjustments. Its value network has two heads: the Q-head estimates
// the return of each bid adjustment, and the price head predicts the
// clearing price of the auction. Both heads share a trunk and are
// trained jointly against the combined loss
//
//	cost = wQ * MSE(Q) + wPrice * MSE(price)
//
// where the Q targets are the usual bootstrapped targets
// r + γ * (1 - done) * max[Q'(s', a')] computed by a target network.
type DeepBid struct {
	// Behaviour network for action selection (batch size 1)
	policyNet network.NeuralNet
	policyVM  G.VM

	// Network whose weights are adapted, and its loss graph
	trainNet network.NeuralNet
	trainVM  G.VM
	solver   G.Solver

	// Network that provides the bootstrapped update target
	targetNet network.NeuralNet
	targetVM  G.VM

	// Target network synchronization schedule
	targetUpdateInterval int
	learnSteps           int

	// Input nodes of the loss graph
	nextStateActionValues *G.Node // Q'(s', a') for all a', from targetNet
	rewards               *G.Node
	discounts             *G.Node // γ * (1 - done) per transition
	observedPrices        *G.Node
	selectedActions       *G.Node // One-hot actions taken at the states

	// Loss values captured from the last learning step
	qLossVal     G.Value
	priceLossVal G.Value
	costVal      G.Value

	replay  expreplay.ExperienceReplayer
	epsilon schedule.Linear
	rng     *rand.Rand

	gamma      float64
	numActions int
	batchSize  int
	eval       bool
}

// New creates and returns a new DeepBid agent acting on observation
// vectors of length features and choosing among numActions bid
// adjustments.
func New(features, numActions int, config Config,
	seed int64) (*DeepBid, error) {
	if features < 1 {
		return nil, fmt.Errorf("deepbid: observation vectors cannot be "+
			"empty \n\thave(%v features)", features)
	}
	if numActions < 1 {
		return nil, fmt.Errorf("deepbid: bid adjustment set cannot be "+
			"empty")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	epsilon, err := schedule.NewLinear(config.EpsilonStart,
		config.EpsilonEnd, config.EpsilonDecaySteps)
	if err != nil {
		return nil, fmt.Errorf("deepbid: invalid exploration schedule: %v",
			err)
	}

	batchSize := config.BatchSize

	// Behaviour network for selecting actions
	g := G.NewGraph()
	policyNet, err := network.NewBidNet(features, 1, numActions, g,
		config.TrunkLayers, config.TrunkBiases, config.TrunkActivations,
		config.QHiddenLayers, config.PriceHiddenLayers,
		config.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("deepbid: could not create policy "+
			"network: %v", err)
	}
	policyVM := G.NewTapeMachine(policyNet.Graph())

	// Create a training network which learns the weights
	trainNet, err := policyNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("deepbid: could not create learning "+
			"network: %v", err)
	}
	gTrain := trainNet.Graph()

	// Create nodes to compute the update target:
	// r + γ * (1 - done) * max[Q'(s', a')]
	nextStateActionValues := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("targetActionVals"))
	rewards := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("reward"))
	discounts := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("discount"))

	updateTarget := G.Must(G.Max(nextStateActionValues, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Action selected at each state in the batch. This is needed to
	// compute the loss using the correct action value since the Q-head
	// outputs one value for each bid adjustment.
	selectedActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("actionSelected"))
	selectedActionsValue := G.Must(G.HadamardProd(
		trainNet.Prediction()[0], selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	// Mean squared TD error of the Q-head
	qLosses := G.Must(G.Sub(updateTarget, selectedActionsValue))
	qLosses = G.Must(G.Square(qLosses))
	qLoss := G.Must(G.Mean(qLosses))

	// Mean squared regression error of the price head against the
	// clearing prices observed in the sampled transitions
	observedPrices := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, 1), G.WithName("observedPrice"))
	priceLosses := G.Must(G.Sub(trainNet.Prediction()[1], observedPrices))
	priceLosses = G.Must(G.Square(priceLosses))
	priceLoss := G.Must(G.Mean(priceLosses))

	weightQ := G.NewConstant(config.WeightDQNLoss, G.WithName("weightQ"))
	weightPrice := G.NewConstant(config.WeightPriceLoss,
		G.WithName("weightPrice"))
	cost := G.Must(G.Add(
		G.Must(G.Mul(weightQ, qLoss)),
		G.Must(G.Mul(weightPrice, priceLoss)),
	))

	agent := &DeepBid{
		policyNet: policyNet,
		policyVM:  policyVM,
		trainNet:  trainNet,
		solver:    config.Solver,

		targetUpdateInterval: config.TargetUpdateInterval,

		nextStateActionValues: nextStateActionValues,
		rewards:               rewards,
		discounts:             discounts,
		observedPrices:        observedPrices,
		selectedActions:       selectedActions,

		epsilon:    epsilon,
		gamma:      config.Gamma,
		numActions: numActions,
		batchSize:  batchSize,
	}
	G.Read(qLoss, &agent.qLossVal)
	G.Read(priceLoss, &agent.priceLossVal)
	G.Read(cost, &agent.costVal)

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("deepbid: could not compute gradient: %v",
			err)
	}
	agent.trainVM = G.NewTapeMachine(gTrain,
		G.BindDualValues(trainNet.Learnables()...))

	// Create the target network which provides the update target
	targetNet, err := policyNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("deepbid: could not create target "+
			"network: %v", err)
	}
	agent.targetNet = targetNet
	agent.targetVM = G.NewTapeMachine(targetNet.Graph())

	agent.replay, err = expreplay.New(config.MinReplaySize,
		config.ReplayCapacity, batchSize, features, numActions, seed)
	if err != nil {
		return nil, fmt.Errorf("deepbid: could not create experience "+
			"replay buffer: %v", err)
	}

	agent.rng = rand.New(rand.NewSource(seed))

	return agent, nil
}

// Observe records a single auction transition in the replay buffer
func (d *DeepBid) Observe(t ts.Transition) error {
	if err := d.replay.Add(t); err != nil {
		return fmt.Errorf("observe: %v", err)
	}
	return nil
}

// Step performs a single learning step on a batch of transitions
// sampled from the replay buffer. Until the buffer holds the minimum
// number of transitions, Step is a no-op so that early learning does
// not overfit to a handful of auctions.
func (d *DeepBid) Step() error {
	S, A, R, P, dones, NextS, err := d.replay.Sample()
	if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("step: could not sample from replay buffer: %v",
			err)
	}

	// Previous action one-hot vectors
	prevActions := tensor.New(
		tensor.WithShape(d.batchSize, d.numActions),
		tensor.WithBacking(A),
	)
	if err := G.Let(d.selectedActions, prevActions); err != nil {
		return fmt.Errorf("step: could not set selected actions: %v", err)
	}

	// Compute Q'(s', a') for all a' with the target network
	if err := d.targetNet.SetInput(NextS); err != nil {
		return fmt.Errorf("step: could not set target net input: %v", err)
	}
	if err := d.targetVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run target network: %v", err)
	}
	err = G.Let(d.nextStateActionValues, d.targetNet.Output()[0])
	if err != nil {
		return fmt.Errorf("step: could not set next state-action "+
			"values: %v", err)
	}
	d.targetVM.Reset()

	rewardTensor := tensor.New(tensor.WithBacking(R),
		tensor.WithShape(d.batchSize))
	if err := G.Let(d.rewards, rewardTensor); err != nil {
		return fmt.Errorf("step: could not set rewards: %v", err)
	}

	// Terminal transitions bootstrap from nothing
	discount := make([]float64, d.batchSize)
	for i := range discount {
		discount[i] = d.gamma * (1.0 - dones[i])
	}
	discountTensor := tensor.New(tensor.WithBacking(discount),
		tensor.WithShape(d.batchSize))
	if err := G.Let(d.discounts, discountTensor); err != nil {
		return fmt.Errorf("step: could not set discounts: %v", err)
	}

	priceTensor := tensor.New(tensor.WithBacking(P),
		tensor.WithShape(d.batchSize, 1))
	if err := G.Let(d.observedPrices, priceTensor); err != nil {
		return fmt.Errorf("step: could not set observed prices: %v", err)
	}

	// Run the learning step
	if err := d.trainNet.SetInput(S); err != nil {
		return fmt.Errorf("step: could not set trainNet input: %v", err)
	}
	if err := d.trainVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run learning step: %v", err)
	}

	qLoss, priceLoss, cost := d.Losses()
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		d.trainVM.Reset()
		return fmt.Errorf("step: non-finite loss at learning step %v "+
			"\n\thave(cost %v, Q loss %v, price loss %v)", d.learnSteps,
			cost, qLoss, priceLoss)
	}

	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		return fmt.Errorf("step: could not step solver: %v", err)
	}
	d.trainVM.Reset()
	d.learnSteps++

	// Update the target network by setting its weights to the newly
	// learned weights
	if d.learnSteps%d.targetUpdateInterval == 0 {
		if err := d.targetNet.Set(d.trainNet); err != nil {
			return fmt.Errorf("step: could not sync target network: %v",
				err)
		}
	}

	return d.policyNet.Set(d.trainNet)
}

// EndEpisode performs cleanup at the end of an episode
func (d *DeepBid) EndEpisode() {}

// SelectAction returns a bid adjustment index chosen ε-greedily with
// respect to the Q-head of the behaviour network. The step argument is
// the global environment step, which the exploration schedule decays
// over. Ties between maximal Q-values break toward the lowest index.
// In evaluation mode action selection is fully greedy.
func (d *DeepBid) SelectAction(obs *mat.VecDense, step int) (int, error) {
	if obs.Len() != d.policyNet.Features() {
		return 0, fmt.Errorf("selectaction: invalid observation length "+
			"\n\twant(%v)\n\thave(%v)", d.policyNet.Features(), obs.Len())
	}

	if !d.eval && d.rng.Float64() < d.epsilon.Value(step) {
		return d.rng.Intn(d.numActions), nil
	}

	if err := d.policyNet.SetInput(obs.RawVector().Data); err != nil {
		return 0, fmt.Errorf("selectaction: could not set policy "+
			"input: %v", err)
	}
	if err := d.policyVM.RunAll(); err != nil {
		return 0, fmt.Errorf("selectaction: could not run policy: %v", err)
	}
	qValues := d.policyNet.Output()[0].Data().([]float64)
	d.policyVM.Reset()

	_, indices := floatutils.MaxSlice(qValues)
	return indices[0], nil
}

// PredictPrice returns the clearing price predicted by the price head
// for the given observation.
func (d *DeepBid) PredictPrice(obs *mat.VecDense) (float64, error) {
	if err := d.policyNet.SetInput(obs.RawVector().Data); err != nil {
		return 0, fmt.Errorf("predictprice: could not set policy "+
			"input: %v", err)
	}
	if err := d.policyVM.RunAll(); err != nil {
		return 0, fmt.Errorf("predictprice: could not run policy: %v", err)
	}
	price := d.policyNet.Output()[1].Data().([]float64)[0]
	d.policyVM.Reset()

	return price, nil
}

// Eval sets the agent to evaluation mode
func (d *DeepBid) Eval() { d.eval = true }

// Train sets the agent to training mode
func (d *DeepBid) Train() { d.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (d *DeepBid) IsEval() bool { return d.eval }

// Epsilon returns the exploration rate of the behaviour policy at the
// given global environment step. In evaluation mode the policy never
// explores.
func (d *DeepBid) Epsilon(step int) float64 {
	if d.eval {
		return 0
	}
	return d.epsilon.Value(step)
}

// LearnSteps returns the number of learning steps completed so far
func (d *DeepBid) LearnSteps() int {
	return d.learnSteps
}

// Losses returns the Q-head loss, the price-head loss, and the
// combined cost of the last learning step.
func (d *DeepBid) Losses() (qLoss, priceLoss, cost float64) {
	if d.costVal == nil {
		return 0, 0, 0
	}
	return d.qLossVal.Data().(float64), d.priceLossVal.Data().(float64),
		d.costVal.Data().(float64)
}

// Network returns the behaviour network of the agent
func (d *DeepBid) Network() network.NeuralNet {
	return d.policyNet
}

// TargetNetwork returns the target network of the agent
func (d *DeepBid) TargetNetwork() network.NeuralNet {
	return d.targetNet
}

// Save checkpoints the learned weights to the file at path
func (d *DeepBid) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: could not create checkpoint file: %v", err)
	}
	defer f.Close()

	net, ok := d.policyNet.(*network.BidNet)
	if !ok {
		return fmt.Errorf("save: cannot checkpoint network of type %T",
			d.policyNet)
	}
	if err := gob.NewEncoder(f).Encode(net); err != nil {
		return fmt.Errorf("save: could not encode network: %v", err)
	}
	return nil
}

// Load restores checkpointed weights from the file at path into the
// behaviour, learning, and target networks.
func (d *DeepBid) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load: could not open checkpoint file: %v", err)
	}
	defer f.Close()

	net := &network.BidNet{}
	if err := gob.NewDecoder(f).Decode(net); err != nil {
		return fmt.Errorf("load: could not decode network: %v", err)
	}

	for _, target := range []network.NeuralNet{d.policyNet, d.trainNet,
		d.targetNet} {
		if err := target.Set(net); err != nil {
			return fmt.Errorf("load: could not set weights: %v", err)
		}
	}
	return nil
}

// Close closes the virtual machines of the agent's networks. The agent
// cannot learn or select actions after it is closed.
func (d *DeepBid) Close() error {
	policyErr := d.policyVM.Close()
	trainErr := d.trainVM.Close()
	targetErr := d.targetVM.Close()

	for _, err := range []error{policyErr, trainErr, targetErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
