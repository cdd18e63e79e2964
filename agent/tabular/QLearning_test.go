package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/admarket/bidrl/timestep"
)

func obs(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

// TestQLearningUpdate checks the Q-learning update rule on a single
// transition.
func TestQLearningUpdate(t *testing.T) {
	config := DefaultConfig()
	config.LearningRate = 0.5
	config.Gamma = 0.75

	agent, err := New(3, config, 42)
	require.NoError(t, err)

	state := obs(0.05, 0.05)
	next := obs(0.95, 0.95)

	// Terminal transition: the target is just the reward
	require.NoError(t, agent.Observe(timestep.Transition{
		State: state, Action: 1, Reward: 4, Done: true, NextState: next,
	}))
	require.NoError(t, agent.Step())

	agent.Eval()
	action, err := agent.SelectAction(state, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, action) // Q(s, 1) = 0.5 * 4 = 2, others 0

	// Non-terminal transition from next into state bootstraps from
	// the updated Q(s, .)
	require.NoError(t, agent.Observe(timestep.Transition{
		State: next, Action: 0, Reward: 1, Done: false, NextState: state,
	}))
	require.NoError(t, agent.Step())

	action, err = agent.SelectAction(next, 0)
	require.NoError(t, err)
	// Q(s', 0) = 0.5 * (1 + 0.75 * 2) = 1.25, others 0
	assert.Equal(t, 0, action)
}

// TestQLearningStepWithoutObserve checks that learning without a
// pending transition is a no-op.
func TestQLearningStepWithoutObserve(t *testing.T) {
	agent, err := New(3, DefaultConfig(), 42)
	require.NoError(t, err)

	require.NoError(t, agent.Step())
	assert.Zero(t, agent.States())
}

// TestQLearningDiscretization checks that nearby observations share a
// table row while distant ones do not.
func TestQLearningDiscretization(t *testing.T) {
	config := DefaultConfig()
	config.Bins = 10

	agent, err := New(2, config, 42)
	require.NoError(t, err)

	assert.Equal(t, agent.key(obs(0.11, 0.52)), agent.key(obs(0.19, 0.58)))
	assert.NotEqual(t, agent.key(obs(0.11, 0.52)), agent.key(obs(0.21, 0.52)))

	// Values outside the unit interval clip into the boundary buckets
	assert.Equal(t, agent.key(obs(1.0, 0.0)), agent.key(obs(1.7, -0.3)))
}

// TestQLearningEpsilonDecay checks the per-episode decay of the
// exploration rate.
func TestQLearningEpsilonDecay(t *testing.T) {
	config := DefaultConfig()
	config.Epsilon = 0.5
	config.EpsilonDecay = 0.9

	agent, err := New(2, config, 42)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, agent.Epsilon(0), 1e-12)
	agent.EndEpisode()
	agent.EndEpisode()
	assert.InDelta(t, 0.5*0.9*0.9, agent.Epsilon(0), 1e-12)

	agent.Eval()
	assert.Zero(t, agent.Epsilon(0))
}

func TestQLearningInvalidObserve(t *testing.T) {
	agent, err := New(2, DefaultConfig(), 42)
	require.NoError(t, err)

	assert.Error(t, agent.Observe(timestep.Transition{
		State: obs(0.5), Action: 2, NextState: obs(0.5),
	}))
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	config.LearningRate = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Gamma = -0.1
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Epsilon = 1.1
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.EpsilonDecay = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Bins = 0
	assert.Error(t, config.Validate())

	assert.NoError(t, DefaultConfig().Validate())
}
