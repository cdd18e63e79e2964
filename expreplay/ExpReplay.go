// Package expreplay implements experience replay for the bidding
// agents. The buffer stores transitions of the repeated ad auction and
// returns uniformly sampled minibatches to decorrelate learning
// updates.
package expreplay

import (
	"fmt"
	"math/rand"

	"github.com/admarket/bidrl/timestep"
)

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer
	Add(t timestep.Transition) error

	// Sample draws a batch of experience from the buffer and returns
	// it as flat []float64 slices: states, one-hot encoded actions,
	// rewards, observed clearing prices, episode-termination flags,
	// and next states
	Sample() ([]float64, []float64, []float64, []float64, []float64,
		[]float64, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// cache implements a concrete ExperienceReplayer. Storage is a set of
// fixed-capacity arenas indexed by a single write cursor: the insert
// counter modulo the maximum capacity addresses the slot to write,
// so the oldest transition is overwritten once the buffer is full and
// no per-insert allocation takes place.
type cache struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	priceCache     []float64
	doneCache      []float64
	nextStateCache []float64

	// inserts counts every Add since creation. The write cursor is
	// inserts % maxCapacity.
	inserts int

	rng *rand.Rand

	minCapacity int
	maxCapacity int
	batchSize   int
	featureSize int
	numActions  int
}

// New creates and returns a new ExperienceReplayer. The featureSize
// parameter defines the length of state observation vectors and
// numActions the size of the discrete bid-adjustment set; actions are
// one-hot encoded over numActions when sampled. Batches of batchSize
// are drawn uniformly randomly with replacement using a generator
// seeded with seed.
func New(minCapacity, maxCapacity, batchSize, featureSize,
	numActions int, seed int64) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("new: batchSize must be >= 1")
	}
	if batchSize > maxCapacity {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: featureSize must be >= 1")
	}
	if numActions < 1 {
		return nil, fmt.Errorf("new: numActions must be >= 1")
	}

	source := rand.NewSource(seed)

	return &cache{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]int, maxCapacity),
		rewardCache:    make([]float64, maxCapacity),
		priceCache:     make([]float64, maxCapacity),
		doneCache:      make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		rng: rand.New(source),

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		batchSize:   batchSize,
		featureSize: featureSize,
		numActions:  numActions,
	}, nil
}

// String returns the string representation of the cache
func (c *cache) String() string {
	baseStr := "Capacity: %v/%v \nStates: %v \nActions: %v \nRewards: %v" +
		" \nPrices: %v \nDones: %v \nNext States: %v"
	return fmt.Sprintf(baseStr, c.Capacity(), c.maxCapacity, c.stateCache,
		c.actionCache, c.rewardCache, c.priceCache, c.doneCache,
		c.nextStateCache)
}

// BatchSize returns the number of samples drawn by Sample()
func (c *cache) BatchSize() int {
	return c.batchSize
}

// Capacity returns the current number of transitions in the cache that
// are available for sampling
func (c *cache) Capacity() int {
	if c.inserts < c.maxCapacity {
		return c.inserts
	}
	return c.maxCapacity
}

// MaxCapacity returns the maximum number of transitions that are
// allowed in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the minimum number of transitions required in
// the cache before sampling is allowed
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// Add adds a transition to the cache, overwriting the oldest stored
// transition when the cache is at maximum capacity. Add never fails for
// well-shaped transitions.
func (c *cache) Add(t timestep.Transition) error {
	if t.State.Len() != c.featureSize || t.NextState.Len() != c.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)"+
			"\n\thave(%v)", c.featureSize, t.State.Len())
	}
	if t.Action < 0 || t.Action >= c.numActions {
		return fmt.Errorf("add: action index out of range \n\twant([0, %v))"+
			"\n\thave(%v)", c.numActions, t.Action)
	}

	index := c.inserts % c.maxCapacity
	c.inserts++

	stateInd := index * c.featureSize
	copy(c.stateCache[stateInd:stateInd+c.featureSize], t.State.RawVector().Data)
	copy(c.nextStateCache[stateInd:stateInd+c.featureSize],
		t.NextState.RawVector().Data)

	c.actionCache[index] = t.Action
	c.rewardCache[index] = t.Reward
	c.priceCache[index] = t.ObservedPrice
	if t.Done {
		c.doneCache[index] = 1.0
	} else {
		c.doneCache[index] = 0.0
	}

	return nil
}

// Sample draws a batch of transitions from the replay buffer uniformly
// randomly with replacement
func (c *cache) Sample() ([]float64, []float64, []float64, []float64,
	[]float64, []float64, error) {
	if c.Capacity() == 0 {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errEmptyBuffer,
		}
		return nil, nil, nil, nil, nil, nil, err
	}
	if c.Capacity() < c.MinCapacity() || c.Capacity() < c.batchSize {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
		return nil, nil, nil, nil, nil, nil, err
	}

	stateBatch := make([]float64, c.batchSize*c.featureSize)
	actionBatch := make([]float64, c.batchSize*c.numActions)
	rewardBatch := make([]float64, c.batchSize)
	priceBatch := make([]float64, c.batchSize)
	doneBatch := make([]float64, c.batchSize)
	nextStateBatch := make([]float64, c.batchSize*c.featureSize)

	for i := 0; i < c.batchSize; i++ {
		index := c.rng.Intn(c.Capacity())

		batchStartInd := i * c.featureSize
		expStartInd := index * c.featureSize
		copy(stateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.stateCache[expStartInd:expStartInd+c.featureSize],
		)
		copy(nextStateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.nextStateCache[expStartInd:expStartInd+c.featureSize],
		)

		actionBatch[i*c.numActions+c.actionCache[index]] = 1.0
		rewardBatch[i] = c.rewardCache[index]
		priceBatch[i] = c.priceCache[index]
		doneBatch[i] = c.doneCache[index]
	}

	return stateBatch, actionBatch, rewardBatch, priceBatch, doneBatch,
		nextStateBatch, nil
}
