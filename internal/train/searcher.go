package train

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/lightgbm"
)

// Search space bounds. Iteration count, early stopping and seed stay fixed
// across trials so runs are comparable and reproducible.
const (
	minNumLeaves       = 20
	maxNumLeaves       = 150
	minLearningRate    = 0.01
	maxLearningRate    = 0.3
	minFraction        = 0.5
	maxFraction        = 1.0
	minBaggingFreq     = 1
	maxBaggingFreq     = 10
	minChildSamples    = 5
	maxChildSamples    = 100
	minLambda          = 1e-8
	maxLambda          = 10.0
	minSearchDepth     = 3
	maxSearchDepth     = 12
	searchIterations   = 1000
	searchEarlyStop    = 50
	searchSeed         = 42
)

// Searcher runs a randomized hyperparameter search: each trial samples a
// candidate from the space above, fits it with early stopping, and is scored
// by validation AUC of the truncated ensemble.
type Searcher struct {
	trials  int
	timeout time.Duration
	rng     *rand.Rand
	log     zerolog.Logger
}

func NewSearcher(trials int, timeout time.Duration, log zerolog.Logger) *Searcher {
	return &Searcher{
		trials:  trials,
		timeout: timeout,
		rng:     rand.New(rand.NewSource(searchSeed)),
		log:     log.With().Str("component", "searcher").Logger(),
	}
}

// Search returns the best-observed hyperparameters and their validation AUC.
// Ties go to the later trial. Failed trials (degenerate fits, single-class
// validation) are skipped; if every trial fails the result is
// ErrNoValidTrials and the caller falls back to the fixed defaults.
func (s *Searcher) Search(ctx context.Context, trainSet, validSet *lightgbm.Dataset) (contracts.Hyperparams, float64, error) {
	deadline := time.Now().Add(s.timeout)

	var best contracts.Hyperparams
	bestAUC := math.Inf(-1)
	valid := 0

	for trial := 0; trial < s.trials; trial++ {
		if err := ctx.Err(); err != nil {
			return contracts.Hyperparams{}, 0, err
		}
		if s.timeout > 0 && time.Now().After(deadline) {
			s.log.Warn().
				Int("completed_trials", trial).
				Dur("timeout", s.timeout).
				Msg("search budget exhausted")
			break
		}

		params := s.sample()
		booster, err := lightgbm.Train(params, trainSet, validSet, s.log)
		if err != nil {
			s.log.Warn().Err(err).Int("trial", trial).Msg("trial failed")
			continue
		}
		auc := lightgbm.AUC(validSet.Y, booster.PredictBatch(validSet.X))
		if math.IsNaN(auc) {
			s.log.Warn().Int("trial", trial).Msg("trial produced undefined AUC")
			continue
		}
		valid++

		if auc >= bestAUC {
			bestAUC = auc
			best = params
			s.log.Info().
				Int("trial", trial).
				Float64("auc", auc).
				Int("num_leaves", params.NumLeaves).
				Float64("learning_rate", params.LearningRate).
				Msg("new best trial")
		} else {
			s.log.Debug().Int("trial", trial).Float64("auc", auc).Msg("trial complete")
		}
	}

	if valid == 0 {
		return contracts.Hyperparams{}, 0, contracts.ErrNoValidTrials
	}
	return best, bestAUC, nil
}

func (s *Searcher) sample() contracts.Hyperparams {
	return contracts.Hyperparams{
		NumLeaves:       s.intRange(minNumLeaves, maxNumLeaves),
		LearningRate:    s.logUniform(minLearningRate, maxLearningRate),
		FeatureFraction: s.uniform(minFraction, maxFraction),
		BaggingFraction: s.uniform(minFraction, maxFraction),
		BaggingFreq:     s.intRange(minBaggingFreq, maxBaggingFreq),
		MinChildSamples: s.intRange(minChildSamples, maxChildSamples),
		LambdaL1:        s.logUniform(minLambda, maxLambda),
		LambdaL2:        s.logUniform(minLambda, maxLambda),
		MaxDepth:        s.intRange(minSearchDepth, maxSearchDepth),
		NumIterations:   searchIterations,
		EarlyStopping:   searchEarlyStop,
		Seed:            searchSeed,
	}
}

func (s *Searcher) intRange(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

func (s *Searcher) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Searcher) logUniform(lo, hi float64) float64 {
	return math.Exp(math.Log(lo) + s.rng.Float64()*(math.Log(hi)-math.Log(lo)))
}
