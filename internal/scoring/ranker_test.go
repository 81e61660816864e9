package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

func prediction(ticker string, weighted float64) contracts.PredictionRecord {
	return contracts.PredictionRecord{
		Ticker:        ticker,
		Date:          time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		WeightedScore: weighted,
	}
}

func neutralRecord(ticker string, weighted, overheat float64) contracts.ScoreRecord {
	return contracts.ScoreRecord{
		PredictionRecord:  prediction(ticker, weighted),
		FundamentalScore:  0.5,
		RiskAdjustedScore: 0.5,
		OverheatPenalty:   overheat,
	}
}

func TestComposite_DefaultWeights(t *testing.T) {
	ranker := NewRanker(DefaultWeights(), 60, zerolog.Nop())

	// 0.50*w + 0.25*0.5 + 0.25*0.5 with no overheat.
	tests := []struct {
		weighted float64
		want     float64
	}{
		{0.8, 0.65},
		{0.6, 0.55},
		{0.4, 0.45},
	}
	for _, tt := range tests {
		got := ranker.Composite(tt.weighted, 0.5, 0.5, 0)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Composite(%v) = %v, want %v", tt.weighted, got, tt.want)
		}
	}
}

func TestComposite_OverheatFlipsRank(t *testing.T) {
	ranker := NewRanker(DefaultWeights(), 60, zerolog.Nop())

	records := []contracts.ScoreRecord{
		neutralRecord("A.T", 0.8, 1.0),
		neutralRecord("B.T", 0.6, 0),
		neutralRecord("C.T", 0.4, 0),
	}
	for i := range records {
		records[i].CompositeScore = ranker.Composite(
			records[i].WeightedScore, 0.5, 0.5, records[i].OverheatPenalty)
	}

	// Fully overheated leader: 0.65 * (1 - 0.30) = 0.455, behind B's 0.55.
	if got := records[0].CompositeScore; math.Abs(got-0.455) > 1e-12 {
		t.Fatalf("overheated composite = %v, want 0.455", got)
	}

	ranked := ranker.Rank(records)
	wantOrder := []string{"B.T", "A.T", "C.T"}
	for i, want := range wantOrder {
		if ranked[i].Ticker != want {
			t.Errorf("rank %d = %s, want %s", i+1, ranked[i].Ticker, want)
		}
		if ranked[i].Rank != i+1 {
			t.Errorf("rank field = %d, want %d", ranked[i].Rank, i+1)
		}
	}
}

func TestComposite_MonotoneInOverheat(t *testing.T) {
	ranker := NewRanker(DefaultWeights(), 60, zerolog.Nop())

	prev := math.Inf(1)
	for pen := 0.0; pen <= 1.0; pen += 0.1 {
		got := ranker.Composite(0.7, 0.5, 0.5, pen)
		if got > prev {
			t.Fatalf("composite increased from %v to %v as penalty rose to %v", prev, got, pen)
		}
		prev = got
	}

	// Zero penalty leaves the base score untouched.
	base := DefaultWeights().Prediction*0.7 + DefaultWeights().Fundamental*0.5 + DefaultWeights().Risk*0.5
	if got := ranker.Composite(0.7, 0.5, 0.5, 0); math.Abs(got-base) > 1e-12 {
		t.Errorf("composite with zero penalty = %v, want base %v", got, base)
	}
}

func TestRank_StableTieBreak(t *testing.T) {
	ranker := NewRanker(DefaultWeights(), 60, zerolog.Nop())

	records := []contracts.ScoreRecord{
		neutralRecord("FIRST.T", 0.5, 0),
		neutralRecord("SECOND.T", 0.5, 0),
		neutralRecord("THIRD.T", 0.5, 0),
	}
	for i := range records {
		records[i].CompositeScore = 0.5
	}

	ranked := ranker.Rank(records)
	for i, want := range []string{"FIRST.T", "SECOND.T", "THIRD.T"} {
		if ranked[i].Ticker != want {
			t.Errorf("tied rank %d = %s, want input order preserved (%s)", i+1, ranked[i].Ticker, want)
		}
	}
}

func TestScore_EndToEnd(t *testing.T) {
	ranker := NewRanker(DefaultWeights(), 60, zerolog.Nop())

	predictions := []contracts.PredictionRecord{
		prediction("A.T", 0.8),
		prediction("B.T", 0.6),
	}
	// No fundamentals, no price history: both components fall back to
	// neutral 0.5 and the penalty to 0.
	ranked := ranker.Score(predictions, nil, nil)

	if len(ranked) != 2 {
		t.Fatalf("records = %d, want 2", len(ranked))
	}
	if ranked[0].Ticker != "A.T" || math.Abs(ranked[0].CompositeScore-0.65) > 1e-12 {
		t.Errorf("top record = %s/%v, want A.T/0.65", ranked[0].Ticker, ranked[0].CompositeScore)
	}
	if ranked[0].FundamentalScore != 0.5 || ranked[0].RiskAdjustedScore != 0.5 {
		t.Errorf("fallback scores = %v/%v, want 0.5/0.5",
			ranked[0].FundamentalScore, ranked[0].RiskAdjustedScore)
	}
	if ranked[0].OverheatPenalty != 0 {
		t.Errorf("penalty = %v, want 0 without history", ranked[0].OverheatPenalty)
	}
}
