package lightgbm

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// separableDataset builds rows where the label is determined by feature 0,
// with two noise features that carry no signal.
func separableDataset(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &Dataset{}
	for i := 0; i < n; i++ {
		signal := rng.Float64()*2 - 1
		row := []float64{signal, rng.Float64(), rng.NormFloat64()}
		ds.X = append(ds.X, row)
		if signal > 0 {
			ds.Y = append(ds.Y, 1)
		} else {
			ds.Y = append(ds.Y, 0)
		}
	}
	return ds
}

func testParams() contracts.Hyperparams {
	p := contracts.DefaultHyperparams()
	p.NumIterations = 50
	p.NumLeaves = 7
	p.MinChildSamples = 5
	return p
}

func TestTrain_LearnsSeparableData(t *testing.T) {
	train := separableDataset(400, 1)
	valid := separableDataset(100, 2)

	booster, err := Train(testParams(), train, valid, zerolog.Nop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	probs := booster.PredictBatch(valid.X)
	auc := AUC(valid.Y, probs)
	if auc < 0.95 {
		t.Errorf("validation AUC = %v, want >= 0.95 on separable data", auc)
	}

	for i, p := range probs {
		if p <= 0 || p >= 1 || math.IsNaN(p) {
			t.Fatalf("prob[%d] = %v, want strictly inside (0, 1)", i, p)
		}
	}
}

func TestTrain_Deterministic(t *testing.T) {
	train := separableDataset(300, 3)
	valid := separableDataset(80, 4)
	params := testParams()

	a, err := Train(params, train, valid, zerolog.Nop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	b, err := Train(params, train, valid, zerolog.Nop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if a.BestIteration != b.BestIteration {
		t.Fatalf("best iterations differ: %d vs %d", a.BestIteration, b.BestIteration)
	}
	pa := a.PredictBatch(valid.X)
	pb := b.PredictBatch(valid.X)
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("prediction %d differs under identical seed: %v vs %v", i, pa[i], pb[i])
		}
	}
}

func TestTrain_EarlyStoppingTruncates(t *testing.T) {
	train := separableDataset(400, 5)
	valid := separableDataset(100, 6)

	params := testParams()
	params.NumIterations = 500
	params.EarlyStopping = 10

	booster, err := Train(params, train, valid, zerolog.Nop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if booster.BestIteration >= params.NumIterations {
		t.Errorf("expected early stop before %d rounds, kept %d", params.NumIterations, booster.BestIteration)
	}
	if len(booster.Trees) != booster.BestIteration {
		t.Errorf("trees = %d, want truncation to best iteration %d", len(booster.Trees), booster.BestIteration)
	}
}

func TestTrain_ImportanceFavorsSignalFeature(t *testing.T) {
	train := separableDataset(400, 7)
	valid := separableDataset(100, 8)

	booster, err := Train(testParams(), train, valid, zerolog.Nop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if len(booster.Importance) != 3 {
		t.Fatalf("importance length = %d, want 3", len(booster.Importance))
	}
	if booster.Importance[0] <= booster.Importance[1] || booster.Importance[0] <= booster.Importance[2] {
		t.Errorf("signal feature gain %v not dominant over noise gains %v, %v",
			booster.Importance[0], booster.Importance[1], booster.Importance[2])
	}
}

func TestTrain_EmptyDataset(t *testing.T) {
	_, err := Train(testParams(), &Dataset{}, nil, zerolog.Nop())
	if err == nil {
		t.Error("expected error for empty training set")
	}
}

func TestTrain_SingleClass(t *testing.T) {
	ds := &Dataset{
		X: [][]float64{{1}, {2}, {3}, {4}},
		Y: []float64{1, 1, 1, 1},
	}
	booster, err := Train(testParams(), ds, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	// Pure positives: the base rate dominates and probabilities stay high.
	if p := booster.Predict([]float64{2.5}); p < 0.9 {
		t.Errorf("single-class prediction = %v, want near 1", p)
	}
}

func TestBoosterJSONRoundTrip(t *testing.T) {
	train := separableDataset(200, 9)
	booster, err := Train(testParams(), train, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	raw, err := json.Marshal(booster)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored Booster
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for i, row := range train.X[:20] {
		if got, want := restored.Predict(row), booster.Predict(row); got != want {
			t.Fatalf("restored prediction %d = %v, want %v", i, got, want)
		}
	}
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name   string
		labels []float64
		probs  []float64
		want   float64
	}{
		{"perfect", []float64{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, 1.0},
		{"inverted", []float64{0, 0, 1, 1}, []float64{0.9, 0.8, 0.2, 0.1}, 0.0},
		{"all tied", []float64{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"mixed", []float64{0, 1, 0, 1}, []float64{0.3, 0.4, 0.6, 0.7}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AUC(tt.labels, tt.probs); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("AUC = %v, want %v", got, tt.want)
			}
		})
	}

	if got := AUC([]float64{1, 1}, []float64{0.5, 0.6}); !math.IsNaN(got) {
		t.Errorf("single-class AUC = %v, want NaN", got)
	}
}
