package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

func makePanel(t *testing.T, ticker string, closes []float64) *contracts.FeaturePanel {
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

func TestGenerateLabels_ForwardReturn(t *testing.T) {
	closes := []float64{100, 110, 99, 120, 121, 110}
	panel := makePanel(t, "7203.T", closes)

	if err := GenerateLabels(panel, []int{1, 5}); err != nil {
		t.Fatalf("GenerateLabels: %v", err)
	}

	returns, err := panel.Column(contracts.FutureReturnColumn(1))
	if err != nil {
		t.Fatalf("future return column: %v", err)
	}
	targets, err := panel.Column(contracts.TargetColumn(1))
	if err != nil {
		t.Fatalf("target column: %v", err)
	}

	// future_return_1d[t] == close[t+1]/close[t] - 1 exactly
	for i := 0; i < len(closes)-1; i++ {
		want := closes[i+1]/closes[i] - 1
		if returns[i] != want {
			t.Errorf("future_return_1d[%d] = %v, want %v", i, returns[i], want)
		}
		wantTarget := 0.0
		if want > 0 {
			wantTarget = 1.0
		}
		if targets[i] != wantTarget {
			t.Errorf("target_1d[%d] = %v, want %v", i, targets[i], wantTarget)
		}
	}
}

func TestGenerateLabels_TrailingNaN(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107}
	panel := makePanel(t, "7203.T", closes)

	horizons := []int{1, 3, 5}
	if err := GenerateLabels(panel, horizons); err != nil {
		t.Fatalf("GenerateLabels: %v", err)
	}

	for _, h := range horizons {
		targets, _ := panel.Column(contracts.TargetColumn(h))
		returns, _ := panel.Column(contracts.FutureReturnColumn(h))

		// Exactly the last h rows are undefined, binary {0,1} elsewhere.
		for i, v := range targets {
			if i >= len(closes)-h {
				if !math.IsNaN(v) {
					t.Errorf("h=%d target[%d] = %v, want NaN", h, i, v)
				}
				if !math.IsNaN(returns[i]) {
					t.Errorf("h=%d future_return[%d] = %v, want NaN", h, i, returns[i])
				}
			} else {
				if v != 0 && v != 1 {
					t.Errorf("h=%d target[%d] = %v, want 0 or 1", h, i, v)
				}
			}
		}
	}
}

func TestGenerateLabels_HorizonLongerThanSeries(t *testing.T) {
	panel := makePanel(t, "7203.T", []float64{100, 101, 102})

	if err := GenerateLabels(panel, []int{20}); err != nil {
		t.Fatalf("GenerateLabels: %v", err)
	}

	targets, _ := panel.Column(contracts.TargetColumn(20))
	for i, v := range targets {
		if !math.IsNaN(v) {
			t.Errorf("target_20d[%d] = %v, want NaN for short series", i, v)
		}
	}
}

func TestGenerateLabels_MissingClose(t *testing.T) {
	dates := []time.Time{time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)}
	panel := contracts.NewFeaturePanel("7203.T", dates)

	if err := GenerateLabels(panel, []int{1}); err == nil {
		t.Error("expected error for panel without close column")
	}
}
