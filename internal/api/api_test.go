package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/lightgbm"
	"github.com/tenchu0314/kabu-predictor/internal/modelstore"
)

func testRouter(t *testing.T, models *modelstore.Store, horizons []int) http.Handler {
	t.Helper()
	h := NewHandler(nil, models, nil, horizons, zerolog.Nop())
	return NewRouter(h, zerolog.Nop())
}

func TestHealth(t *testing.T) {
	router := testRouter(t, modelstore.New(t.TempDir(), zerolog.Nop()), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestModels_ReturnsAvailableMetrics(t *testing.T) {
	store := modelstore.New(t.TempDir(), zerolog.Nop())
	model := &modelstore.Model{
		Horizon:  5,
		Features: []string{"return_1d"},
		Params:   contracts.DefaultHyperparams(),
		Booster:  &lightgbm.Booster{NumFeatures: 1},
	}
	metrics := &contracts.TrainingMetrics{Horizon: 5, AUC: 0.61, TrainedAt: time.Now()}
	if err := store.Save(model, metrics); err != nil {
		t.Fatalf("Save: %v", err)
	}

	router := testRouter(t, store, []int{1, 5, 20, 60})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Count  int                         `json:"count"`
		Models []contracts.TrainingMetrics `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || len(body.Models) != 1 {
		t.Fatalf("count = %d, models = %d, want 1 each", body.Count, len(body.Models))
	}
	if body.Models[0].Horizon != 5 || body.Models[0].AUC != 0.61 {
		t.Errorf("metrics = %+v", body.Models[0])
	}
}

func TestLatestRankings_UnavailableWithoutRepository(t *testing.T) {
	router := testRouter(t, modelstore.New(t.TempDir(), zerolog.Nop()), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rankings/latest", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	r := NewRouter(NewHandler(nil, modelstore.New(t.TempDir(), zerolog.Nop()), nil, nil, zerolog.Nop()), zerolog.Nop())
	r.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 after panic", rec.Code)
	}
}
