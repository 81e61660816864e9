package scoring

import (
	"math"
	"testing"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

func TestFundamentalScore_Empty(t *testing.T) {
	if got := FundamentalScore(nil); got != 0.5 {
		t.Errorf("nil record score = %v, want 0.5", got)
	}
	if got := FundamentalScore(&contracts.FundamentalRatios{}); got != 0.5 {
		t.Errorf("empty record score = %v, want 0.5", got)
	}
}

func TestFundamentalScore_SingleRatio(t *testing.T) {
	// With only PER present the score is its ramp value alone.
	tests := []struct {
		per  float64
		want float64
	}{
		{5, 1.0},       // (50-5)/45
		{50, 0.0},      // clipped floor
		{27.5, 0.5},    // midpoint of the 5..50 ramp
		{100, 0.0},     // beyond range, clipped
	}
	for _, tt := range tests {
		r := &contracts.FundamentalRatios{PERTrailing: contracts.Float(tt.per)}
		if got := FundamentalScore(r); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("PER %v score = %v, want %v", tt.per, got, tt.want)
		}
	}

	// Negative earnings: PER is excluded, leaving no ratios -> neutral.
	r := &contracts.FundamentalRatios{PERTrailing: contracts.Float(-10)}
	if got := FundamentalScore(r); got != 0.5 {
		t.Errorf("negative PER score = %v, want 0.5", got)
	}
}

func TestFundamentalScore_WeightedBlend(t *testing.T) {
	// PER 27.5 scores 0.5 (weight 1.5); ROE 0.3 scores 1.0 (weight 1.5).
	r := &contracts.FundamentalRatios{
		PERTrailing: contracts.Float(27.5),
		ROE:         contracts.Float(0.30),
	}
	want := (0.5*1.5 + 1.0*1.5) / 3.0
	if got := FundamentalScore(r); math.Abs(got-want) > 1e-12 {
		t.Errorf("blended score = %v, want %v", got, want)
	}
}

func TestFundamentalScore_QualityOrdering(t *testing.T) {
	cheapProfitable := &contracts.FundamentalRatios{
		PERTrailing:     contracts.Float(8),
		PBR:             contracts.Float(0.8),
		ROE:             contracts.Float(0.18),
		OperatingMargin: contracts.Float(0.15),
		RevenueGrowth:   contracts.Float(0.12),
		EquityRatio:     contracts.Float(0.6),
		DividendYield:   contracts.Float(0.035),
		FCFMargin:       contracts.Float(0.10),
	}
	expensiveShrinking := &contracts.FundamentalRatios{
		PERTrailing:     contracts.Float(45),
		PBR:             contracts.Float(4.5),
		ROE:             contracts.Float(0.01),
		OperatingMargin: contracts.Float(0.01),
		RevenueGrowth:   contracts.Float(-0.08),
		EquityRatio:     contracts.Float(0.15),
		DividendYield:   contracts.Float(0),
		FCFMargin:       contracts.Float(-0.04),
	}

	good := FundamentalScore(cheapProfitable)
	bad := FundamentalScore(expensiveShrinking)
	if good <= bad {
		t.Errorf("quality ordering broken: good=%v <= bad=%v", good, bad)
	}
	for _, s := range []float64{good, bad} {
		if s < 0 || s > 1 {
			t.Errorf("score %v outside [0, 1]", s)
		}
	}
}
