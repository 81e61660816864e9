package predict

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/modelstore"
)

// nanWarnFraction is the share of imputed feature values above which a
// prediction is flagged as low quality.
const nanWarnFraction = 0.3

// Predictor runs horizon-weighted inference over the latest row of each
// instrument's panel. Horizons without a model simply contribute nothing to
// the weighted score; the remaining weights are not renormalized, so a
// degraded model set produces systematically lower scores rather than
// silently rescaled ones.
type Predictor struct {
	models  map[int]*modelstore.Model
	weights map[int]float64
	log     zerolog.Logger
}

// New builds a predictor from the loaded models and per-horizon weights.
// An empty model set is a hard failure.
func New(models map[int]*modelstore.Model, weights map[int]float64, log zerolog.Logger) (*Predictor, error) {
	if len(models) == 0 {
		return nil, contracts.ErrNoModelAvailable
	}
	return &Predictor{
		models:  models,
		weights: weights,
		log:     log.With().Str("component", "predictor").Logger(),
	}, nil
}

// PredictAll scores every instrument as of its latest panel row and returns
// the records sorted by weighted score, best first. A failing instrument is
// logged and skipped.
func (p *Predictor) PredictAll(ctx context.Context, panels map[string]*contracts.FeaturePanel) ([]contracts.PredictionRecord, error) {
	records := make([]contracts.PredictionRecord, 0, len(panels))
	failed := 0

	tickers := make([]string, 0, len(panels))
	for ticker := range panels {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := p.Predict(panels[ticker])
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("instrument skipped")
			failed++
			continue
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].WeightedScore > records[b].WeightedScore
	})

	p.log.Info().
		Int("scored", len(records)).
		Int("failed", failed).
		Int("models", len(p.models)).
		Msg("inference complete")
	return records, nil
}

// Predict scores one instrument as of its latest row.
func (p *Predictor) Predict(panel *contracts.FeaturePanel) (contracts.PredictionRecord, error) {
	if err := panel.Validate(); err != nil {
		return contracts.PredictionRecord{}, err
	}
	row := panel.Len() - 1

	record := contracts.PredictionRecord{
		Ticker:        panel.Ticker,
		Date:          panel.Dates[row],
		Probabilities: make(map[int]float64, len(p.models)),
	}

	for horizon, model := range p.models {
		x, imputed := p.reconcile(panel, model, row)
		if frac := float64(imputed) / float64(len(x)); frac > nanWarnFraction {
			p.log.Warn().
				Str("ticker", panel.Ticker).
				Int("horizon", horizon).
				Int("imputed", imputed).
				Int("features", len(x)).
				Msg("prediction degraded by imputed features")
		}

		prob := model.Booster.Predict(x)
		record.Probabilities[horizon] = prob
		record.WeightedScore += p.weights[horizon] * prob
	}

	return record, nil
}

// reconcile maps the panel's latest row onto the model's trained feature
// schema: features are taken in the trained order, columns the panel lacks
// are zero-filled, panel columns the model never saw are ignored, and NaN
// values are imputed to zero. Returns the vector and the imputed count.
func (p *Predictor) reconcile(panel *contracts.FeaturePanel, model *modelstore.Model, row int) ([]float64, int) {
	x := make([]float64, len(model.Features))
	imputed := 0

	for i, name := range model.Features {
		values, ok := panel.Data[name]
		if !ok {
			imputed++
			continue
		}
		v := values[row]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			imputed++
			continue
		}
		x[i] = v
	}

	if imputed > 0 {
		p.log.Debug().
			Str("ticker", panel.Ticker).
			Int("horizon", model.Horizon).
			Int("imputed", imputed).
			Msg("feature schema reconciled")
	}
	return x, imputed
}

// ScoreSeries computes the weighted score for every row of the panel. Used by
// historical evaluation, where each session needs the score the models would
// have produced on that day.
func (p *Predictor) ScoreSeries(panel *contracts.FeaturePanel) ([]float64, error) {
	if err := panel.Validate(); err != nil {
		return nil, err
	}

	scores := make([]float64, panel.Len())
	for row := 0; row < panel.Len(); row++ {
		for _, model := range p.models {
			x, _ := p.reconcile(panel, model, row)
			scores[row] += p.weights[model.Horizon] * model.Booster.Predict(x)
		}
	}
	return scores, nil
}

// Horizons returns the horizons that have a loaded model, ascending.
func (p *Predictor) Horizons() []int {
	horizons := make([]int, 0, len(p.models))
	for h := range p.models {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)
	return horizons
}

// String describes the model set, for startup logging.
func (p *Predictor) String() string {
	return fmt.Sprintf("predictor(models=%v)", p.Horizons())
}
