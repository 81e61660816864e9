package contracts

import "time"

// PredictionRecord is the per-instrument output of model inference for one
// as-of date. WeightedScore is the horizon-weighted sum of probabilities over
// the horizons that had an available model; weights are deliberately not
// renormalized when a horizon is missing, so scores from different runs stay
// on one absolute scale.
type PredictionRecord struct {
	Ticker        string              `json:"ticker"`
	Date          time.Time           `json:"date"`
	Probabilities map[int]float64     `json:"probabilities"` // horizon days -> P(up)
	WeightedScore float64             `json:"weighted_score"`
}

// ScoreRecord extends a PredictionRecord with the fused ranking scores.
// Records are derived, recomputed each ranking pass, and never mutated after
// a run produces its snapshot.
type ScoreRecord struct {
	PredictionRecord

	FundamentalScore  float64 `json:"fundamental_score"`  // [0,1]
	RiskAdjustedScore float64 `json:"risk_adjusted_score"` // [0,1]
	OverheatPenalty   float64 `json:"overheat_penalty"`    // [0,1]
	CompositeScore    float64 `json:"composite_score"`
	Rank              int     `json:"rank"` // 1-based position after the stable sort

	// Instrument metadata, filled from the universe list when available.
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}
