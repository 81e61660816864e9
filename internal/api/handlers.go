package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/modelstore"
	"github.com/tenchu0314/kabu-predictor/internal/store"
	"github.com/tenchu0314/kabu-predictor/pkg/database"
)

const defaultRankingLimit = 50

// Handler serves ranking snapshots and model metadata. The repository and
// database are optional; without them ranking endpoints report unavailable.
type Handler struct {
	repo     *store.Repository
	models   *modelstore.Store
	db       *database.DB
	horizons []int
	log      zerolog.Logger
}

func NewHandler(repo *store.Repository, models *modelstore.Store, db *database.DB, horizons []int, log zerolog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		models:   models,
		db:       db,
		horizons: horizons,
		log:      log.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			h.writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) LatestRankings(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "ranking persistence is not configured")
		return
	}

	limit := defaultRankingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	records, err := h.repo.LatestRankings(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("latest rankings query failed")
		h.writeError(w, http.StatusInternalServerError, "failed to load rankings")
		return
	}
	if len(records) == 0 {
		h.writeError(w, http.StatusNotFound, "no ranking snapshot available")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"as_of":    records[0].Date,
		"count":    len(records),
		"rankings": records,
	})
}

func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	metrics := make([]*contracts.TrainingMetrics, 0, len(h.horizons))
	for _, horizon := range h.horizons {
		m, err := h.models.LoadMetrics(horizon)
		if err != nil {
			h.log.Debug().Err(err).Int("horizon", horizon).Msg("metrics unavailable")
			continue
		}
		metrics = append(metrics, m)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(metrics),
		"models": metrics,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("response encode failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
