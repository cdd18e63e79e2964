// Package tabular implements a tabular Q-learning bidding agent over
// discretized observations. It learns much faster than the deep agent
// on small auction markets and serves as a baseline for it.
package tabular

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/admarket/bidrl/timestep"
	"github.com/admarket/bidrl/utils/floatutils"
)

// Config implements a configuration of the tabular Q-learning agent
type Config struct {
	LearningRate float64
	Gamma        float64 // Discount factor

	// Exploration rate of the behaviour policy, decayed
	// multiplicatively at the end of each episode
	Epsilon      float64
	EpsilonDecay float64

	// Number of buckets each observation component is discretized into
	Bins int
}

// DefaultConfig returns a Config with default hyperparameter values
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.1,
		Gamma:        0.75,
		Epsilon:      0.3,
		EpsilonDecay: 0.99,
		Bins:         10,
	}
}

// Validate checks whether the Config is valid
func (c Config) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("config: learning rate must be positive "+
			"\n\thave(%v)", c.LearningRate)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("config: discount must be in [0, 1] \n\thave(%v)",
			c.Gamma)
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("config: epsilon must be in [0, 1] \n\thave(%v)",
			c.Epsilon)
	}
	if c.EpsilonDecay <= 0 || c.EpsilonDecay > 1 {
		return fmt.Errorf("config: epsilon decay must be in (0, 1] "+
			"\n\thave(%v)", c.EpsilonDecay)
	}
	if c.Bins <= 0 {
		return fmt.Errorf("config: bins must be positive \n\thave(%v)",
			c.Bins)
	}
	return nil
}

// QLearning implements tabular Q-learning over discretized
// observations
type QLearning struct {
	config     Config
	qTable     map[string][]float64
	numActions int

	// Transition waiting to be learned from
	transition timestep.Transition
	pending    bool

	epsilon float64
	rng     *rand.Rand
	eval    bool
}

// New creates and returns a new QLearning agent choosing among
// numActions bid adjustments.
func New(numActions int, config Config, seed int64) (*QLearning, error) {
	if numActions < 1 {
		return nil, fmt.Errorf("qlearning: bid adjustment set cannot be " +
			"empty")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &QLearning{
		config:     config,
		qTable:     make(map[string][]float64),
		numActions: numActions,
		epsilon:    config.Epsilon,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// key discretizes an observation into a Q-table key
func (q *QLearning) key(obs *mat.VecDense) string {
	var b strings.Builder
	for i := 0; i < obs.Len(); i++ {
		v := floatutils.Clip(obs.AtVec(i), 0, 1)
		bin := int(math.Floor(v * float64(q.config.Bins)))
		if bin == q.config.Bins {
			bin--
		}
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.Itoa(bin))
	}
	return b.String()
}

// values returns the action values of a discretized state, creating
// the table row on first access
func (q *QLearning) values(key string) []float64 {
	if row, ok := q.qTable[key]; ok {
		return row
	}
	row := make([]float64, q.numActions)
	q.qTable[key] = row
	return row
}

// Observe records a single auction transition
func (q *QLearning) Observe(t timestep.Transition) error {
	if t.Action < 0 || t.Action >= q.numActions {
		return fmt.Errorf("observe: invalid action \n\twant(action in "+
			"[0, %v])\n\thave(%v)", q.numActions-1, t.Action)
	}
	q.transition = t
	q.pending = true
	return nil
}

// Step applies the Q-learning update to the most recently observed
// transition. Without a pending transition Step is a no-op.
func (q *QLearning) Step() error {
	if !q.pending {
		return nil
	}
	q.pending = false

	t := q.transition
	row := q.values(q.key(t.State))

	target := t.Reward
	if !t.Done {
		next, _ := floatutils.MaxSlice(q.values(q.key(t.NextState)))
		target += q.config.Gamma * next
	}
	row[t.Action] += q.config.LearningRate * (target - row[t.Action])

	return nil
}

// EndEpisode decays the exploration rate at the end of an episode
func (q *QLearning) EndEpisode() {
	q.epsilon *= q.config.EpsilonDecay
}

// SelectAction returns a bid adjustment index chosen ε-greedily with
// respect to the Q-table. Ties break toward the lowest index. The step
// argument is ignored, the exploration rate decays per episode rather
// than per step.
func (q *QLearning) SelectAction(obs *mat.VecDense, step int) (int, error) {
	if !q.eval && q.rng.Float64() < q.epsilon {
		return q.rng.Intn(q.numActions), nil
	}

	_, indices := floatutils.MaxSlice(q.values(q.key(obs)))
	return indices[0], nil
}

// Epsilon returns the current exploration rate. The argument exists to
// match the exploration reporting of schedule-based agents and is
// ignored.
func (q *QLearning) Epsilon(step int) float64 {
	if q.eval {
		return 0
	}
	return q.epsilon
}

// Eval sets the agent to evaluation mode
func (q *QLearning) Eval() { q.eval = true }

// Train sets the agent to training mode
func (q *QLearning) Train() { q.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (q *QLearning) IsEval() bool { return q.eval }

// States returns the number of discretized states visited so far
func (q *QLearning) States() int {
	return len(q.qTable)
}
