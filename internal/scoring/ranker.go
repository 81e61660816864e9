package scoring

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/evaluate"
)

// Weights is the score-fusion configuration. The three component weights form
// the base score; OverheatCap bounds the multiplicative deduction, so a fully
// overheated instrument keeps (1 - OverheatCap) of its base score and the
// composite can never go negative.
type Weights struct {
	Prediction  float64
	Fundamental float64
	Risk        float64
	OverheatCap float64
}

func DefaultWeights() Weights {
	return Weights{
		Prediction:  0.50,
		Fundamental: 0.25,
		Risk:        0.25,
		OverheatCap: 0.30,
	}
}

// Ranker fuses prediction, fundamental and risk scores into composite scores
// and produces the final ordering.
type Ranker struct {
	weights      Weights
	riskLookback int
	log          zerolog.Logger
}

func NewRanker(weights Weights, riskLookback int, log zerolog.Logger) *Ranker {
	return &Ranker{
		weights:      weights,
		riskLookback: riskLookback,
		log:          log.With().Str("component", "ranker").Logger(),
	}
}

// Composite applies the fusion formula: the weighted sum of the three
// component scores is computed first, then scaled down by the overheat
// penalty. The order matters; penalizing the components individually before
// summation would give a different number.
func (r *Ranker) Composite(prediction, fundamental, risk, overheat float64) float64 {
	base := r.weights.Prediction*prediction +
		r.weights.Fundamental*fundamental +
		r.weights.Risk*risk
	return base * (1 - r.weights.OverheatCap*overheat)
}

// Score derives a full ScoreRecord per prediction: fundamental score from the
// instrument's ratio record (neutral when absent), trailing risk score and
// overheat penalty from its close series, then the composite.
func (r *Ranker) Score(
	predictions []contracts.PredictionRecord,
	fundamentals map[string]*contracts.FundamentalRatios,
	closes map[string][]float64,
) []contracts.ScoreRecord {
	records := make([]contracts.ScoreRecord, 0, len(predictions))

	for _, pred := range predictions {
		record := contracts.ScoreRecord{
			PredictionRecord: pred,
			FundamentalScore: FundamentalScore(fundamentals[pred.Ticker]),
		}

		series := closes[pred.Ticker]
		record.RiskAdjustedScore = evaluate.RiskScoreFromCloses(series, r.riskLookback)
		record.OverheatPenalty = OverheatPenalty(series)

		record.CompositeScore = r.Composite(
			record.WeightedScore,
			record.FundamentalScore,
			record.RiskAdjustedScore,
			record.OverheatPenalty,
		)
		records = append(records, record)
	}

	return r.Rank(records)
}

// Rank orders records by composite score, best first, and assigns 1-based
// ranks. The sort is stable: records with equal composite scores keep their
// relative input order, which is the documented tie-break policy.
func (r *Ranker) Rank(records []contracts.ScoreRecord) []contracts.ScoreRecord {
	ranked := make([]contracts.ScoreRecord, len(records))
	copy(ranked, records)

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].CompositeScore > ranked[b].CompositeScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if len(ranked) > 0 {
		r.log.Info().
			Int("instruments", len(ranked)).
			Str("top", ranked[0].Ticker).
			Float64("top_composite", ranked[0].CompositeScore).
			Msg("ranking complete")
	}
	return ranked
}
