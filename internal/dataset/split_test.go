package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// poolWithDates builds a single-instrument pool with one row per date.
func poolWithDates(n int) *PooledTrainingSet {
	pool := &PooledTrainingSet{Horizon: 1, Features: []string{"f"}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		pool.Dates = append(pool.Dates, base.AddDate(0, 0, i))
		pool.Tickers = append(pool.Tickers, "7203.T")
		pool.X = append(pool.X, []float64{float64(i)})
		pool.Y = append(pool.Y, float64(i%2))
	}
	return pool
}

func TestWalkForwardSplit_Windows(t *testing.T) {
	// 500 dates: test = min(60, 100) = 60, validation = min(20, 50) = 20.
	pool := poolWithDates(500)

	train, validation, test, err := WalkForwardSplit(pool)
	if err != nil {
		t.Fatalf("WalkForwardSplit: %v", err)
	}

	if test.Len() != 60 {
		t.Errorf("test size = %d, want 60", test.Len())
	}
	if validation.Len() != 20 {
		t.Errorf("validation size = %d, want 20", validation.Len())
	}
	if train.Len() != 420 {
		t.Errorf("train size = %d, want 420", train.Len())
	}
}

func TestWalkForwardSplit_SmallSample(t *testing.T) {
	// 100 dates: test = min(60, 20) = 20, validation = min(20, 10) = 10.
	pool := poolWithDates(100)

	train, validation, test, err := WalkForwardSplit(pool)
	if err != nil {
		t.Fatalf("WalkForwardSplit: %v", err)
	}
	if test.Len() != 20 || validation.Len() != 10 || train.Len() != 70 {
		t.Errorf("sizes = %d/%d/%d, want 70/10/20", train.Len(), validation.Len(), test.Len())
	}
}

func TestWalkForwardSplit_StrictOrdering(t *testing.T) {
	pool := poolWithDates(200)

	train, validation, test, err := WalkForwardSplit(pool)
	if err != nil {
		t.Fatalf("WalkForwardSplit: %v", err)
	}

	maxTrain := train.Dates[train.Len()-1]
	minVal := validation.Dates[0]
	maxVal := validation.Dates[validation.Len()-1]
	minTest := test.Dates[0]

	if !maxTrain.Before(minVal) {
		t.Errorf("max(train)=%v not strictly before min(validation)=%v", maxTrain, minVal)
	}
	if !maxVal.Before(minTest) {
		t.Errorf("max(validation)=%v not strictly before min(test)=%v", maxVal, minTest)
	}

	// Pairwise disjoint date sets.
	seen := map[time.Time]string{}
	for _, part := range []struct {
		name string
		set  *PooledTrainingSet
	}{{"train", train}, {"validation", validation}, {"test", test}} {
		for _, d := range part.set.UniqueDates() {
			if other, dup := seen[d]; dup {
				t.Errorf("date %v appears in both %s and %s", d, other, part.name)
			}
			seen[d] = part.name
		}
	}
}

func TestWalkForwardSplit_InsufficientData(t *testing.T) {
	// With 0 unique dates the training remainder is empty.
	_, _, _, err := WalkForwardSplit(&PooledTrainingSet{Horizon: 1})
	if !errors.Is(err, contracts.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestWalkForwardSplit_PreservesRowsAcrossInstruments(t *testing.T) {
	panels := map[string]*contracts.FeaturePanel{
		"7203.T": labeledPanel(t, "7203.T", series(120)),
		"6758.T": labeledPanel(t, "6758.T", series(120)),
	}
	pool, err := BuildPool(panels, 1)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}

	train, validation, test, err := WalkForwardSplit(pool)
	if err != nil {
		t.Fatalf("WalkForwardSplit: %v", err)
	}

	if got := train.Len() + validation.Len() + test.Len(); got != pool.Len() {
		t.Errorf("split row total = %d, want %d", got, pool.Len())
	}
}

func series(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 100 + float64(i%7) - float64(i%3)
	}
	return s
}
