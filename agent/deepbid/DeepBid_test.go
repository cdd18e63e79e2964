package deepbid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/admarket/bidrl/initwfn"
	"github.com/admarket/bidrl/network"
	"github.com/admarket/bidrl/solver"
	ts "github.com/admarket/bidrl/timestep"
)

const testFeatures = 3

func testConfig(t *testing.T, batchSize, minReplay, capacity,
	targetInterval int) Config {
	t.Helper()

	adam, err := solver.NewDefaultAdam(0.01, batchSize)
	require.NoError(t, err)
	glorot, err := initwfn.NewGlorotU(1.0)
	require.NoError(t, err)

	config := DefaultConfig()
	config.TrunkLayers = []int{8}
	config.TrunkBiases = []bool{true}
	config.TrunkActivations = []*network.Activation{network.ReLU()}
	config.QHiddenLayers = []int{4}
	config.PriceHiddenLayers = []int{4}
	config.Solver = adam
	config.InitWFn = glorot
	config.EpsilonStart = 0.0
	config.EpsilonEnd = 0.0
	config.EpsilonDecaySteps = 1
	config.BatchSize = batchSize
	config.MinReplaySize = minReplay
	config.ReplayCapacity = capacity
	config.TargetUpdateInterval = targetInterval
	return config
}

func testTransition(reward, price float64) ts.Transition {
	return ts.Transition{
		State:         mat.NewVecDense(testFeatures, []float64{1, 0.5, -1}),
		Action:        1,
		Reward:        reward,
		ObservedPrice: price,
		Done:          false,
		NextState:     mat.NewVecDense(testFeatures, []float64{0.5, 1, -0.5}),
	}
}

// TestDeepBidWarmUp checks that learning steps are no-ops until the
// replay buffer holds the minimum number of transitions.
func TestDeepBidWarmUp(t *testing.T) {
	config := testConfig(t, 5, 5, 10, 100)
	agent, err := New(testFeatures, 7, config, 42)
	require.NoError(t, err)
	defer agent.Close()

	// Empty buffer
	require.NoError(t, agent.Step())
	assert.Zero(t, agent.LearnSteps())

	// Below the minimum fill level
	for i := 0; i < 4; i++ {
		require.NoError(t, agent.Observe(testTransition(1.0, 2.0)))
		require.NoError(t, agent.Step())
		assert.Zero(t, agent.LearnSteps())
	}

	// Minimum reached: learning starts
	require.NoError(t, agent.Observe(testTransition(1.0, 2.0)))
	require.NoError(t, agent.Step())
	assert.Equal(t, 1, agent.LearnSteps())
}

// TestDeepBidTargetSync checks that the target network keeps stale
// weights between synchronizations and matches the learned weights
// exactly on every sync boundary.
func TestDeepBidTargetSync(t *testing.T) {
	const targetInterval = 3
	config := testConfig(t, 2, 1, 10, targetInterval)
	agent, err := New(testFeatures, 7, config, 42)
	require.NoError(t, err)
	defer agent.Close()

	require.NoError(t, agent.Observe(testTransition(1.0, 2.0)))
	require.NoError(t, agent.Observe(testTransition(-0.5, 1.0)))

	netData := func(n network.NeuralNet) [][]float64 {
		var data [][]float64
		for _, learnable := range n.Learnables() {
			data = append(data, learnable.Value().Data().([]float64))
		}
		return data
	}

	// Before the sync boundary the target still holds the initial
	// weights while the behaviour network has learned
	for i := 0; i < targetInterval-1; i++ {
		require.NoError(t, agent.Step())
	}
	assert.NotEqual(t, netData(agent.Network()),
		netData(agent.TargetNetwork()))

	// On the boundary both networks hold identical weights
	require.NoError(t, agent.Step())
	assert.Equal(t, netData(agent.Network()),
		netData(agent.TargetNetwork()))
}

// TestDeepBidGreedyActionSelection checks that greedy action selection
// is deterministic and breaks Q-value ties toward the lowest index.
func TestDeepBidGreedyActionSelection(t *testing.T) {
	config := testConfig(t, 2, 1, 10, 100)
	zeroes, err := initwfn.NewZeroes()
	require.NoError(t, err)
	config.InitWFn = zeroes

	agent, err := New(testFeatures, 7, config, 42)
	require.NoError(t, err)
	defer agent.Close()
	agent.Eval()

	// All-zero weights give identical Q-values for every adjustment,
	// so the tie must resolve to index 0 every time
	obs := mat.NewVecDense(testFeatures, []float64{1, 2, 3})
	for i := 0; i < 10; i++ {
		action, err := agent.SelectAction(obs, i)
		require.NoError(t, err)
		assert.Equal(t, 0, action)
	}
}

// TestDeepBidCombinedLoss checks the combined loss against its closed
// form on a network whose weights are all zero: every prediction is
// zero, so the Q loss is the mean squared reward, the price loss is
// the mean squared clearing price, and the cost weights the two.
func TestDeepBidCombinedLoss(t *testing.T) {
	config := testConfig(t, 2, 2, 10, 100)
	zeroes, err := initwfn.NewZeroes()
	require.NoError(t, err)
	config.InitWFn = zeroes
	config.WeightDQNLoss = 2.0
	config.WeightPriceLoss = 3.0

	agent, err := New(testFeatures, 7, config, 42)
	require.NoError(t, err)
	defer agent.Close()

	// Identical transitions make the sampled batch deterministic
	require.NoError(t, agent.Observe(testTransition(2.0, 3.0)))
	require.NoError(t, agent.Observe(testTransition(2.0, 3.0)))
	require.NoError(t, agent.Step())

	qLoss, priceLoss, cost := agent.Losses()
	assert.InDelta(t, 4.0, qLoss, 1e-12)
	assert.InDelta(t, 9.0, priceLoss, 1e-12)
	assert.InDelta(t, 2.0*4.0+3.0*9.0, cost, 1e-12)
}

// TestDeepBidEpsilonExploration checks that a fully random behaviour
// policy visits every bid adjustment.
func TestDeepBidEpsilonExploration(t *testing.T) {
	const numActions = 7
	config := testConfig(t, 2, 1, 10, 100)
	config.EpsilonStart = 1.0
	config.EpsilonEnd = 1.0

	agent, err := New(testFeatures, numActions, config, 42)
	require.NoError(t, err)
	defer agent.Close()

	counts := make([]int, numActions)
	obs := mat.NewVecDense(testFeatures, []float64{1, 2, 3})
	for i := 0; i < 1000; i++ {
		action, err := agent.SelectAction(obs, 0)
		require.NoError(t, err)
		counts[action]++
	}

	for action, count := range counts {
		assert.Greaterf(t, count, 0, "adjustment %d never selected", action)
	}
}

func TestConfigValidate(t *testing.T) {
	base := func() Config { return testConfig(t, 2, 1, 10, 100) }

	config := base()
	config.Gamma = 1.5
	assert.Error(t, config.Validate())

	config = base()
	config.WeightPriceLoss = -1.0
	assert.Error(t, config.Validate())

	config = base()
	config.TargetUpdateInterval = 0
	assert.Error(t, config.Validate())

	config = base()
	config.ReplayCapacity = 0
	assert.Error(t, config.Validate())

	config = base()
	config.TrunkBiases = nil
	assert.Error(t, config.Validate())

	assert.NoError(t, base().Validate())
}
