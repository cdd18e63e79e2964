// Package experiment implements functionality for running a training
// experiment
package experiment

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/admarket/bidrl/agent"
	env "github.com/admarket/bidrl/environment"
	"github.com/admarket/bidrl/experiment/tracker"
	"github.com/admarket/bidrl/metrics"
	ts "github.com/admarket/bidrl/timestep"
	"github.com/admarket/bidrl/utils/window"
)

// An epsiloner can report the exploration rate of its behaviour
// policy at a given global step
type epsiloner interface {
	Epsilon(step int) float64
}

// Config implements a configuration of a training run
type Config struct {
	NumEpisodes int // Episodes to train for

	// Episodes over which the rolling win rate is computed
	WinRateWindow int

	// Environment steps of uniformly random bidding used to prefill
	// the agent's experience before the first episode. Zero disables
	// the warm-up.
	WarmUpSteps int
	Seed        int64 // Seed of the warm-up policy

	// Episodes between agent checkpoints. Zero disables
	// checkpointing. Checkpointing requires an agent implementing
	// agent.Saver and is skipped otherwise.
	CheckpointInterval int
	CheckpointPath     string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		NumEpisodes:   1000,
		WinRateWindow: 10,
	}
}

// Validate checks whether the Config is valid
func (c Config) Validate() error {
	if c.NumEpisodes <= 0 {
		return fmt.Errorf("config: number of episodes must be positive "+
			"\n\thave(%v)", c.NumEpisodes)
	}
	if c.WinRateWindow <= 0 {
		return fmt.Errorf("config: win rate window must be positive "+
			"\n\thave(%v)", c.WinRateWindow)
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("config: checkpoint interval cannot be "+
			"negative \n\thave(%v)", c.CheckpointInterval)
	}
	if c.WarmUpSteps < 0 {
		return fmt.Errorf("config: warm-up steps cannot be negative "+
			"\n\thave(%v)", c.WarmUpSteps)
	}
	return nil
}

// Trainer runs a bidding agent against an auction environment for a
// fixed number of episodes. The interaction is single-threaded: within
// an episode the trainer alternates strictly between acting and
// learning, so the agent observes every transition exactly once and in
// order.
type Trainer struct {
	environment env.Environment
	agent       agent.Agent
	config      Config

	winRate    *window.Window
	rng        *rand.Rand
	globalStep int
	episodes   int

	logger   zerolog.Logger
	trackers []tracker.Tracker
	metrics  *metrics.Metrics
}

// NewTrainer creates and returns a new Trainer. The metrics argument
// may be nil, in which case no metrics are recorded. Trackers
// registered with the trainer receive every environment timestep.
func NewTrainer(environment env.Environment, a agent.Agent, config Config,
	logger zerolog.Logger, m *metrics.Metrics,
	trackers ...tracker.Tracker) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	winRate, err := window.New(config.WinRateWindow)
	if err != nil {
		return nil, fmt.Errorf("newtrainer: could not create win rate "+
			"window: %v", err)
	}

	return &Trainer{
		environment: environment,
		agent:       a,
		config:      config,
		winRate:     winRate,
		rng:         rand.New(rand.NewSource(config.Seed)),
		logger:      logger,
		trackers:    trackers,
		metrics:     m,
	}, nil
}

// Register registers a tracker.Tracker with the (possibly already
// running) training run. Useful to start tracking data only after a
// specified event.
func (t *Trainer) Register(tr tracker.Tracker) {
	t.trackers = append(t.trackers, tr)
}

// GlobalStep returns the total number of environment steps taken
// across all episodes so far
func (t *Trainer) GlobalStep() int {
	return t.globalStep
}

// WinRate returns the fraction of episodes won within the rolling
// window
func (t *Trainer) WinRate() float64 {
	return t.winRate.Mean()
}

// RunEpisode runs a single training episode and returns its cumulative
// reward.
func (t *Trainer) RunEpisode() (float64, error) {
	step := t.environment.Reset()
	t.track(step)

	var episodeReturn float64
	var episodeSteps int

	for !step.Last() {
		action, err := t.agent.SelectAction(step.Observation, t.globalStep)
		if err != nil {
			return 0, fmt.Errorf("runepisode: could not select action: %v",
				err)
		}

		next, err := t.environment.Step(action)
		if err != nil {
			return 0, fmt.Errorf("runepisode: could not step "+
				"environment: %v", err)
		}
		t.track(next)

		if err := t.agent.Observe(ts.NewTransition(step, action,
			next)); err != nil {
			return 0, fmt.Errorf("runepisode: could not observe "+
				"transition: %v", err)
		}
		if err := t.agent.Step(); err != nil {
			return 0, fmt.Errorf("runepisode: learning step failed: %v",
				err)
		}

		t.globalStep++
		episodeSteps++
		episodeReturn += next.Reward
		step = next

		if t.metrics != nil {
			t.metrics.Steps.Inc()
		}
	}
	t.agent.EndEpisode()
	t.episodes++

	won := episodeReturn > 0
	if won {
		t.winRate.Push(1)
	} else {
		t.winRate.Push(0)
	}

	t.logEpisode(episodeReturn, episodeSteps, won)
	t.recordEpisode(episodeReturn, won)

	return episodeReturn, nil
}

// warmUp prefills the agent's experience with uniformly random
// bidding. The warm-up does not advance the global step, so the
// exploration schedule starts untouched.
func (t *Trainer) warmUp() error {
	if t.config.WarmUpSteps <= 0 {
		return nil
	}
	numActions := int(t.environment.ActionSpec().UpperBound.AtVec(0)) + 1

	step := t.environment.Reset()
	for i := 0; i < t.config.WarmUpSteps; i++ {
		action := t.rng.Intn(numActions)
		next, err := t.environment.Step(action)
		if err != nil {
			return fmt.Errorf("warmup: could not step environment: %v", err)
		}
		if err := t.agent.Observe(ts.NewTransition(step, action,
			next)); err != nil {
			return fmt.Errorf("warmup: could not observe transition: %v",
				err)
		}

		if next.Last() {
			step = t.environment.Reset()
		} else {
			step = next
		}
	}

	t.logger.Info().Int("steps", t.config.WarmUpSteps).
		Msg("warm-up finished")
	return nil
}

// Run runs the training episodes and then saves all tracked data. If
// an episode fails, training stops and the error is returned without
// saving.
func (t *Trainer) Run() error {
	if err := t.warmUp(); err != nil {
		return fmt.Errorf("run: %v", err)
	}

	for i := 0; i < t.config.NumEpisodes; i++ {
		if _, err := t.RunEpisode(); err != nil {
			return fmt.Errorf("run: episode %v: %v", i, err)
		}

		if t.shouldCheckpoint() {
			if err := t.checkpoint(); err != nil {
				return fmt.Errorf("run: episode %v: %v", i, err)
			}
		}
	}

	return t.Save()
}

// Save saves the data of all registered trackers to disk
func (t *Trainer) Save() error {
	for _, tr := range t.trackers {
		if err := tr.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// track sends the current timestep to each registered tracker
func (t *Trainer) track(step ts.TimeStep) {
	for _, tr := range t.trackers {
		tr.Track(step)
	}
}

func (t *Trainer) logEpisode(episodeReturn float64, steps int, won bool) {
	event := t.logger.Info().
		Int("episode", t.episodes).
		Int("steps", steps).
		Int("globalStep", t.globalStep).
		Float64("return", episodeReturn).
		Bool("won", won).
		Float64("winRate", t.winRate.Mean())

	if e, ok := t.agent.(epsiloner); ok {
		event = event.Float64("epsilon", e.Epsilon(t.globalStep))
	}
	event.Msg("episode finished")
}

func (t *Trainer) recordEpisode(episodeReturn float64, won bool) {
	if t.metrics == nil {
		return
	}

	t.metrics.Episodes.Inc()
	t.metrics.EpisodeReturn.Set(episodeReturn)
	t.metrics.WinRate.Set(t.winRate.Mean())
	if won {
		t.metrics.Wins.Inc()
	}
	if e, ok := t.agent.(epsiloner); ok {
		t.metrics.Epsilon.Set(e.Epsilon(t.globalStep))
	}
}

func (t *Trainer) shouldCheckpoint() bool {
	return t.config.CheckpointInterval > 0 &&
		t.episodes%t.config.CheckpointInterval == 0
}

func (t *Trainer) checkpoint() error {
	saver, ok := t.agent.(agent.Saver)
	if !ok {
		return nil
	}
	if err := saver.Save(t.config.CheckpointPath); err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	t.logger.Info().Str("path", t.config.CheckpointPath).
		Msg("checkpointed agent")
	return nil
}
