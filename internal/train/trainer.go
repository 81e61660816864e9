package train

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/dataset"
	"github.com/tenchu0314/kabu-predictor/internal/lightgbm"
	"github.com/tenchu0314/kabu-predictor/internal/modelstore"
)

const topFeatureCount = 20

// Trainer fits one model per horizon from universe-pooled labeled panels and
// persists the artifacts.
type Trainer struct {
	store    *modelstore.Store
	trials   int
	timeout  time.Duration
	optimize bool
	log      zerolog.Logger
}

func New(store *modelstore.Store, trials int, timeout time.Duration, optimize bool, log zerolog.Logger) *Trainer {
	return &Trainer{
		store:    store,
		trials:   trials,
		timeout:  timeout,
		optimize: optimize,
		log:      log.With().Str("component", "trainer").Logger(),
	}
}

// TrainAll runs the full walk-forward pipeline for every horizon. A failing
// horizon is logged and skipped so the remaining horizons still get fresh
// models; the returned error is non-nil only when no horizon succeeds.
func (t *Trainer) TrainAll(ctx context.Context, panels map[string]*contracts.FeaturePanel, horizons []int) ([]contracts.TrainingMetrics, error) {
	var results []contracts.TrainingMetrics

	for _, horizon := range horizons {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		metrics, err := t.TrainHorizon(ctx, panels, horizon)
		if err != nil {
			t.log.Error().Err(err).Int("horizon", horizon).Msg("horizon training failed")
			continue
		}
		results = append(results, *metrics)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no horizon produced a model out of %d", len(horizons))
	}
	return results, nil
}

// TrainHorizon builds the pooled set for one horizon, splits it walk-forward,
// optionally searches hyperparameters, fits the final model and persists it.
func (t *Trainer) TrainHorizon(ctx context.Context, panels map[string]*contracts.FeaturePanel, horizon int) (*contracts.TrainingMetrics, error) {
	pool, err := dataset.BuildPool(panels, horizon)
	if err != nil {
		return nil, err
	}

	trainPool, validPool, testPool, err := dataset.WalkForwardSplit(pool)
	if err != nil {
		return nil, err
	}

	trainSet := &lightgbm.Dataset{X: trainPool.X, Y: trainPool.Y}
	validSet := &lightgbm.Dataset{X: validPool.X, Y: validPool.Y}
	testSet := &lightgbm.Dataset{X: testPool.X, Y: testPool.Y}

	for _, part := range []struct {
		name string
		set  *lightgbm.Dataset
	}{{"train", trainSet}, {"validation", validSet}, {"test", testSet}} {
		if singleClass(part.set.Y) {
			return nil, fmt.Errorf("%w: %s window for horizon %d has a single label class",
				contracts.ErrInsufficientData, part.name, horizon)
		}
	}

	t.log.Info().
		Int("horizon", horizon).
		Int("train_rows", trainSet.Len()).
		Int("validation_rows", validSet.Len()).
		Int("test_rows", testSet.Len()).
		Int("features", len(pool.Features)).
		Msg("training horizon")

	params := contracts.DefaultHyperparams()
	if t.optimize {
		searcher := NewSearcher(t.trials, t.timeout, t.log)
		found, auc, err := searcher.Search(ctx, trainSet, validSet)
		switch {
		case errors.Is(err, contracts.ErrNoValidTrials):
			t.log.Warn().Int("horizon", horizon).Msg("search produced no valid trial, using defaults")
		case err != nil:
			return nil, err
		default:
			t.log.Info().Int("horizon", horizon).Float64("search_auc", auc).Msg("search complete")
			params = found
		}
	}

	booster, err := lightgbm.Train(params, trainSet, validSet, t.log)
	if err != nil {
		return nil, err
	}

	ev := evaluate(testSet.Y, booster.PredictBatch(testSet.X))
	metrics := &contracts.TrainingMetrics{
		Horizon:       horizon,
		AUC:           ev.AUC,
		Accuracy:      ev.Accuracy,
		Precision:     ev.Precision,
		Recall:        ev.Recall,
		F1:            ev.F1,
		LogLoss:       ev.LogLoss,
		TrainSamples:  trainSet.Len(),
		ValSamples:    validSet.Len(),
		TestSamples:   testSet.Len(),
		FeatureCount:  len(pool.Features),
		BestIteration: booster.BestIteration,
		TopFeatures:   topFeatures(pool.Features, booster.Importance),
		TrainedAt:     time.Now().UTC(),
	}

	model := &modelstore.Model{
		Horizon:   horizon,
		Features:  pool.Features,
		Params:    params,
		Booster:   booster,
		TrainedAt: metrics.TrainedAt,
	}
	if err := t.store.Save(model, metrics); err != nil {
		return nil, err
	}

	t.log.Info().
		Int("horizon", horizon).
		Float64("test_auc", ev.AUC).
		Float64("test_accuracy", ev.Accuracy).
		Int("best_iteration", booster.BestIteration).
		Msg("horizon trained")
	return metrics, nil
}

func singleClass(y []float64) bool {
	if len(y) == 0 {
		return true
	}
	first := y[0]
	for _, v := range y[1:] {
		if v != first {
			return false
		}
	}
	return true
}

func topFeatures(names []string, gains []float64) []contracts.FeatureImportance {
	ranked := make([]contracts.FeatureImportance, len(names))
	for i, name := range names {
		ranked[i] = contracts.FeatureImportance{Name: name, Gain: gains[i]}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Gain > ranked[b].Gain })
	if len(ranked) > topFeatureCount {
		ranked = ranked[:topFeatureCount]
	}
	return ranked
}
