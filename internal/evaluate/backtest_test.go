package evaluate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

func closesPanel(t *testing.T, ticker string, closes []float64) *contracts.FeaturePanel {
	t.Helper()
	dates := make([]time.Time, len(closes))
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i)
	}
	panel := contracts.NewFeaturePanel(ticker, dates)
	if err := panel.AddColumn(contracts.ColClose, closes); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	return panel
}

func constScores(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestBacktester_PicksTopN(t *testing.T) {
	// Winner rises 1% a day, loser falls 1% a day. With topN=1 and the
	// winner always scored higher, the portfolio is the winner's return.
	winner := []float64{100, 101, 102.01, 103.0301}
	loser := []float64{100, 99, 98.01, 97.0299}

	panels := map[string]*contracts.FeaturePanel{
		"WIN.T":  closesPanel(t, "WIN.T", winner),
		"LOSE.T": closesPanel(t, "LOSE.T", loser),
	}
	scores := map[string][]float64{
		"WIN.T":  constScores(4, 0.9),
		"LOSE.T": constScores(4, 0.1),
	}

	result, err := NewBacktester(1, zerolog.Nop()).Run(context.Background(), panels, scores)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Days != 3 {
		t.Errorf("days = %d, want 3", result.Days)
	}
	want := winner[3]/winner[0] - 1
	if math.Abs(result.CumulativeReturn-want) > 1e-9 {
		t.Errorf("cumulative return = %v, want %v", result.CumulativeReturn, want)
	}
	if result.WinRate != 1 {
		t.Errorf("win rate = %v, want 1", result.WinRate)
	}
	if result.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %v, want 0 for monotone winner", result.MaxDrawdown)
	}
}

func TestBacktester_EqualWeight(t *testing.T) {
	a := []float64{100, 110} // +10%
	b := []float64{100, 90}  // -10%

	panels := map[string]*contracts.FeaturePanel{
		"A.T": closesPanel(t, "A.T", a),
		"B.T": closesPanel(t, "B.T", b),
	}
	scores := map[string][]float64{
		"A.T": constScores(2, 0.6),
		"B.T": constScores(2, 0.5),
	}

	result, err := NewBacktester(2, zerolog.Nop()).Run(context.Background(), panels, scores)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Equal weight across both: (+10% - 10%) / 2 = 0.
	if math.Abs(result.CumulativeReturn) > 1e-12 {
		t.Errorf("cumulative return = %v, want 0 for offsetting equal-weight legs", result.CumulativeReturn)
	}
}

func TestBacktester_SkipsUnscoredDates(t *testing.T) {
	closes := []float64{100, 101, 102}
	panels := map[string]*contracts.FeaturePanel{
		"A.T": closesPanel(t, "A.T", closes),
	}
	scores := map[string][]float64{
		"A.T": {math.NaN(), 0.7, 0.7},
	}

	result, err := NewBacktester(1, zerolog.Nop()).Run(context.Background(), panels, scores)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// First date has no score; only the second session trades.
	if result.Days != 1 {
		t.Errorf("days = %d, want 1", result.Days)
	}
}

func TestBacktester_NoTradableSessions(t *testing.T) {
	panels := map[string]*contracts.FeaturePanel{
		"A.T": closesPanel(t, "A.T", []float64{100}),
	}
	scores := map[string][]float64{"A.T": {0.5}}

	_, err := NewBacktester(1, zerolog.Nop()).Run(context.Background(), panels, scores)
	if !errors.Is(err, contracts.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestBacktester_MismatchedScoreLength(t *testing.T) {
	panels := map[string]*contracts.FeaturePanel{
		"A.T": closesPanel(t, "A.T", []float64{100, 101}),
	}
	scores := map[string][]float64{"A.T": {0.5}}

	_, err := NewBacktester(1, zerolog.Nop()).Run(context.Background(), panels, scores)
	if err == nil {
		t.Error("expected error for mismatched score series length")
	}
}
