// Command bidrl trains a bidding agent on the simulated keyword
// auction environment.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/profile"
	"github.com/rs/zerolog"

	"github.com/admarket/bidrl/agent"
	"github.com/admarket/bidrl/agent/deepbid"
	"github.com/admarket/bidrl/agent/tabular"
	"github.com/admarket/bidrl/environment/auction"
	"github.com/admarket/bidrl/experiment"
	"github.com/admarket/bidrl/experiment/tracker"
	"github.com/admarket/bidrl/initwfn"
	"github.com/admarket/bidrl/metrics"
	"github.com/admarket/bidrl/solver"
)

// newSolver returns the solver selected by name. The clip argument
// applies to the vanilla and rmsprop solvers only.
func newSolver(name string, stepSize float64, batchSize int,
	clip float64) (*solver.Solver, error) {
	switch name {
	case "adam":
		return solver.NewDefaultAdam(stepSize, batchSize)
	case "vanilla":
		return solver.NewVanilla(stepSize, batchSize, clip)
	case "rmsprop":
		return solver.NewRMSProp(stepSize, 1e-8, 0.001, 0.999, batchSize,
			clip)
	}
	return nil, fmt.Errorf("newSolver: unknown solver %v", name)
}

// newInitWFn returns the weight initializer selected by name. The
// scale argument is the gain of the glorot and he initializers, the
// standard deviation of gaussian, the bound of uniform, and the value
// of constant.
func newInitWFn(name string, scale float64) (*initwfn.InitWFn, error) {
	switch name {
	case "glorotu":
		return initwfn.NewGlorotU(scale)
	case "glorotn":
		return initwfn.NewGlorotN(scale)
	case "heu":
		return initwfn.NewHeU(scale)
	case "hen":
		return initwfn.NewHeN(scale)
	case "gaussian":
		return initwfn.NewGaussian(0.0, scale)
	case "uniform":
		return initwfn.NewUniform(-scale, scale)
	case "zeroes":
		return initwfn.NewZeroes()
	case "ones":
		return initwfn.NewOnes()
	case "constant":
		return initwfn.NewConstant(scale)
	}
	return nil, fmt.Errorf("newInitWFn: unknown initializer %v", name)
}

// parseAdjustments parses a comma-separated bid adjustment set
func parseAdjustments(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	adjustments := make([]float64, len(fields))
	for i, field := range fields {
		adjustment, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("parseAdjustments: invalid bid "+
				"adjustment %v", field)
		}
		adjustments[i] = adjustment
	}
	return adjustments, nil
}

func main() {
	var (
		numEpisodes = flag.Int("num_episodes", 1000,
			"number of episodes to train for")
		agentType = flag.String("agent", "deepbid",
			"agent to train (deepbid or tabular)")
		seed = flag.Int64("seed", time.Now().UnixNano(),
			"random seed of the run")

		gamma = flag.Float64("gamma", 0.75, "discount factor")
		batchSize = flag.Int("train_batch_size", 32,
			"transitions per learning step")
		replaySize = flag.Int("replay_buffer_size", 50000,
			"maximum transitions held by the replay buffer")
		minReplaySize = flag.Int("min_replay_size", 1000,
			"transitions required before learning starts")
		rewardWindow = flag.Int("reward_buffer_size", 10,
			"episodes in the rolling win rate window")
		epsilonStart = flag.Float64("epsilon_start", 1.0,
			"initial exploration rate")
		epsilonEnd = flag.Float64("epsilon_end", 0.01,
			"final exploration rate")
		epsilonDecayPeriod = flag.Int("epsilon_decay_period", 20000,
			"steps over which the exploration rate decays")
		weightDQNLoss = flag.Float64("weight_DQN_loss", 1.0,
			"weight of the Q loss in the combined loss")
		weightPriceLoss = flag.Float64("weight_price_loss", 1.0,
			"weight of the price loss in the combined loss")
		targetUpdateFrequency = flag.Int("target_update_frequency", 1000,
			"learning steps between target network syncs")
		learningRate = flag.Float64("learning_rate", 5e-4,
			"step size of the solver")
		solverType = flag.String("solver", "adam",
			"solver to learn weights with (adam, vanilla, or rmsprop)")
		gradientClip = flag.Float64("gradient_clip", -1.0,
			"gradient clip of the vanilla and rmsprop solvers "+
				"(<= 0 disables)")
		initType = flag.String("init", "glorotu",
			"weight initializer (glorotu, glorotn, heu, hen, gaussian, "+
				"uniform, zeroes, ones, or constant)")
		initScale = flag.Float64("init_scale", 1.0,
			"scale of the weight initializer")

		alpha = flag.Float64("alpha", 0.1,
			"learning rate of the tabular agent")
		tabularEpsilon = flag.Float64("epsilon", 0.3,
			"initial exploration rate of the tabular agent")
		epsilonDecay = flag.Float64("epsilon_decay", 0.99,
			"per-episode exploration decay of the tabular agent")

		initialBudget = flag.Float64("initial_budget", 10000,
			"campaign budget per episode")
		adjustments = flag.String("adjustments", "-6,-4,-2,0,2,4,6",
			"comma-separated bid adjustment set, indexed by action")

		dataDir = flag.String("data_dir", ".",
			"directory for tracked training data")
		checkpointPath = flag.String("save", "",
			"path to checkpoint the agent to (empty disables)")
		checkpointEvery = flag.Int("save_every", 100,
			"episodes between checkpoints")
		metricsAddr = flag.String("metrics", "",
			"address to serve Prometheus metrics on (empty disables)")
		profileCPU = flag.Bool("profile", false,
			"write a CPU profile of the run")
		debug = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	if *profileCPU {
		defer profile.Start(profile.CPUProfile,
			profile.ProfilePath(*dataDir)).Stop()
	}

	adjustmentSet, err := parseAdjustments(*adjustments)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not parse bid adjustments")
	}

	envConfig := auction.DefaultConfig()
	envConfig.InitialBudget = *initialBudget
	envConfig.Adjustments = adjustmentSet
	env, _, err := auction.New(envConfig, uint64(*seed))
	if err != nil {
		logger.Fatal().Err(err).Msg("could not create environment")
	}

	var a agent.Agent
	switch *agentType {
	case "deepbid":
		sol, err := newSolver(*solverType, *learningRate, *batchSize,
			*gradientClip)
		if err != nil {
			logger.Fatal().Err(err).Msg("could not create solver")
		}
		init, err := newInitWFn(*initType, *initScale)
		if err != nil {
			logger.Fatal().Err(err).Msg("could not create initializer")
		}

		config := deepbid.DefaultConfig()
		config.Solver = sol
		config.InitWFn = init
		config.Gamma = *gamma
		config.BatchSize = *batchSize
		config.ReplayCapacity = *replaySize
		config.MinReplaySize = *minReplaySize
		config.EpsilonStart = *epsilonStart
		config.EpsilonEnd = *epsilonEnd
		config.EpsilonDecaySteps = *epsilonDecayPeriod
		config.WeightDQNLoss = *weightDQNLoss
		config.WeightPriceLoss = *weightPriceLoss
		config.TargetUpdateInterval = *targetUpdateFrequency

		deep, err := deepbid.New(auction.ObservationLength,
			len(envConfig.Adjustments), config, *seed)
		if err != nil {
			logger.Fatal().Err(err).Msg("could not create agent")
		}
		defer deep.Close()
		a = deep

	case "tabular":
		config := tabular.DefaultConfig()
		config.LearningRate = *alpha
		config.Gamma = *gamma
		config.Epsilon = *tabularEpsilon
		config.EpsilonDecay = *epsilonDecay

		tab, err := tabular.New(len(envConfig.Adjustments), config, *seed)
		if err != nil {
			logger.Fatal().Err(err).Msg("could not create agent")
		}
		a = tab

	default:
		logger.Fatal().Str("agent", *agentType).Msg("unknown agent type")
	}

	var m *metrics.Metrics
	if *metricsAddr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(*metricsAddr); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	trainerConfig := experiment.Config{
		NumEpisodes:   *numEpisodes,
		WinRateWindow: *rewardWindow,
		Seed:          *seed,
	}
	if *agentType == "deepbid" {
		trainerConfig.WarmUpSteps = *minReplaySize
	}
	if *checkpointPath != "" {
		trainerConfig.CheckpointInterval = *checkpointEvery
		trainerConfig.CheckpointPath = *checkpointPath
	}

	winRates, err := tracker.NewWinRate(*dataDir+"/winrates.bin",
		*rewardWindow)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not create win rate tracker")
	}

	trainer, err := experiment.NewTrainer(env, a, trainerConfig, logger, m,
		tracker.NewReturn(*dataDir+"/returns.bin"), winRates)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not create trainer")
	}

	logger.Info().
		Int("episodes", *numEpisodes).
		Str("agent", *agentType).
		Int64("seed", *seed).
		Msg("training")

	if err := trainer.Run(); err != nil {
		logger.Fatal().Err(err).Msg("training failed")
	}

	logger.Info().
		Float64("winRate", trainer.WinRate()).
		Int("steps", trainer.GlobalStep()).
		Msg("training finished")
}
