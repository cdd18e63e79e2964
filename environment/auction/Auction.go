// Package auction implements a simulated keyword ad auction
// environment.
//
// Each step, a keyword is drawn and a single competitor bids against
// the agent. The competitor's bid is drawn from a gaussian centred on
// the keyword's market price. The agent wins the impression if its bid
// strictly exceeds the competitor's, paying the competitor's bid as
// the clearing price. An episode ends when the campaign budget is
// exhausted or the auction horizon is reached.
package auction

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/admarket/bidrl/environment"
	"github.com/admarket/bidrl/timestep"
	"github.com/admarket/bidrl/utils/floatutils"
)

// Number of distinct keywords in the simulated market
const NumKeywords int = 26

// Relative standard deviation of competitor bids around a keyword's
// market price
const competitorSpread float64 = 0.2

// ObservationLength is the length of the observation vectors produced
// by the environment: remaining budget fraction, remaining horizon
// fraction, and the market price signal of the current keyword.
const ObservationLength int = 3

// Config implements a configuration of the auction environment
type Config struct {
	InitialBudget float64   // Campaign budget per episode
	BaseBid       float64   // Bid before the agent's adjustment
	Adjustments   []float64 // Bid adjustment set, indexed by action
	Horizon       int       // Maximum auctions per episode
}

// DefaultConfig returns the default auction environment configuration
func DefaultConfig() Config {
	return Config{
		InitialBudget: 10000,
		BaseBid:       40,
		Adjustments:   []float64{-6, -4, -2, 0, 2, 4, 6},
		Horizon:       1000,
	}
}

// Validate checks whether the Config is valid
func (c Config) Validate() error {
	if c.InitialBudget <= 0 {
		return fmt.Errorf("config: budget must be positive \n\thave(%v)",
			c.InitialBudget)
	}
	if c.BaseBid <= 0 {
		return fmt.Errorf("config: base bid must be positive \n\thave(%v)",
			c.BaseBid)
	}
	if len(c.Adjustments) == 0 {
		return fmt.Errorf("config: bid adjustment set cannot be empty")
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("config: horizon must be positive \n\thave(%v)",
			c.Horizon)
	}
	return nil
}

// Auction implements the simulated keyword auction as an
// environment.Environment
type Auction struct {
	config Config

	// Market model: per-keyword market prices and impression values
	marketPrice []float64
	value       []float64
	maxPrice    float64

	rng        *rand.Rand
	competitor []distuv.Normal // Competitor bid distribution per keyword

	// Smallest bid the adjustment set can produce. Once the budget
	// drops below it the campaign cannot win another auction and the
	// episode ends.
	minBid float64

	budget  float64
	keyword int // Keyword up for auction at the current step
	step    int
}

// New returns a new auction environment and the first timestep of its
// first episode.
func New(config Config, seed uint64) (*Auction, timestep.TimeStep, error) {
	if err := config.Validate(); err != nil {
		return nil, timestep.TimeStep{}, err
	}

	rng := rand.New(rand.NewSource(seed))

	// Market prices cluster around the base bid so that every
	// adjustment in the set is competitive for some keyword
	marketPrice := make([]float64, NumKeywords)
	value := make([]float64, NumKeywords)
	competitor := make([]distuv.Normal, NumKeywords)
	maxPrice := 0.0
	for k := range marketPrice {
		marketPrice[k] = config.BaseBid * (0.75 + 0.5*rng.Float64())
		value[k] = marketPrice[k] * (1.0 + 0.5*rng.Float64())
		maxPrice = floatutils.Max(maxPrice, marketPrice[k])
		competitor[k] = distuv.Normal{
			Mu:    marketPrice[k],
			Sigma: competitorSpread * marketPrice[k],
			Src:   rand.NewSource(rng.Uint64()),
		}
	}

	auction := &Auction{
		config:      config,
		marketPrice: marketPrice,
		value:       value,
		maxPrice:    maxPrice,
		rng:         rng,
		competitor:  competitor,
		minBid: floatutils.Max(0,
			config.BaseBid+floatutils.Min(config.Adjustments...)),
	}

	return auction, auction.Reset(), nil
}

// Reset resets the environment for a new episode, refilling the
// campaign budget, and returns the first timestep of the episode.
func (a *Auction) Reset() timestep.TimeStep {
	a.budget = a.config.InitialBudget
	a.step = 0
	a.keyword = a.rng.Intn(NumKeywords)

	return timestep.New(timestep.First, 0, 0, a.observation(), 0)
}

// Step runs a single auction with the bid adjustment at the given
// action index and returns the resulting timestep. The timestep's
// Price field always carries the competitor's bid, whether or not the
// impression was won.
func (a *Auction) Step(action int) (timestep.TimeStep, error) {
	if action < 0 || action >= len(a.config.Adjustments) {
		return timestep.TimeStep{}, fmt.Errorf("step: invalid action "+
			"\n\twant(action in [0, %v])\n\thave(%v)",
			len(a.config.Adjustments)-1, action)
	}

	bid := a.config.BaseBid + a.config.Adjustments[action]
	bid = floatutils.Clip(bid, 0, a.budget)

	competitorBid := floatutils.Max(1.0, a.competitor[a.keyword].Rand())

	var reward float64
	if bid > competitorBid {
		// Win: pay the competitor's bid as the clearing price
		a.budget -= competitorBid
		reward = a.value[a.keyword] - competitorBid
	}

	a.step++
	a.keyword = a.rng.Intn(NumKeywords)

	stepType := timestep.Mid
	if a.budget < a.minBid || a.step >= a.config.Horizon {
		stepType = timestep.Last
	}

	return timestep.New(stepType, reward, competitorBid, a.observation(),
		a.step), nil
}

// observation returns the current observation vector
func (a *Auction) observation() *mat.VecDense {
	return mat.NewVecDense(ObservationLength, []float64{
		a.budget / a.config.InitialBudget,
		1.0 - float64(a.step)/float64(a.config.Horizon),
		a.marketPrice[a.keyword] / a.maxPrice,
	})
}

// RemainingBudget returns the campaign budget left in the current
// episode
func (a *Auction) RemainingBudget() float64 {
	return a.budget
}

// ObservationSpec returns the observation specification of the
// environment
func (a *Auction) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(ObservationLength, nil)
	lowerBound := mat.NewVecDense(ObservationLength, nil)
	upperBound := mat.NewVecDense(ObservationLength,
		[]float64{1.0, 1.0, 1.0})

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Continuous)
}

// ActionSpec returns the action specification of the environment
func (a *Auction) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{0})
	upperBound := mat.NewVecDense(1,
		[]float64{float64(len(a.config.Adjustments) - 1)})

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Discrete)
}
