package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// Repository persists ranking snapshots and training metrics. Persistence is
// optional: when no database is configured, callers simply never construct
// one.
type Repository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewRepository(pool *pgxpool.Pool, log zerolog.Logger) *Repository {
	return &Repository{
		pool: pool,
		log:  log.With().Str("component", "store").Logger(),
	}
}

// SaveRankings writes one run's ranked records, replacing any previous
// snapshot for the same date.
func (r *Repository) SaveRankings(ctx context.Context, asOf time.Time, records []contracts.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO rankings
			(as_of, ticker, code, name, rank, weighted_score, fundamental_score,
			 risk_adjusted_score, overheat_penalty, composite_score, probabilities)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (as_of, ticker) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			rank = EXCLUDED.rank,
			weighted_score = EXCLUDED.weighted_score,
			fundamental_score = EXCLUDED.fundamental_score,
			risk_adjusted_score = EXCLUDED.risk_adjusted_score,
			overheat_penalty = EXCLUDED.overheat_penalty,
			composite_score = EXCLUDED.composite_score,
			probabilities = EXCLUDED.probabilities`

	for _, rec := range records {
		probs, err := json.Marshal(rec.Probabilities)
		if err != nil {
			return fmt.Errorf("marshal probabilities for %s: %w", rec.Ticker, err)
		}
		batch.Queue(query, asOf, rec.Ticker, rec.Code, rec.Name, rec.Rank,
			rec.WeightedScore, rec.FundamentalScore, rec.RiskAdjustedScore,
			rec.OverheatPenalty, rec.CompositeScore, probs)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save rankings: %w", err)
		}
	}

	r.log.Info().Int("records", len(records)).Time("as_of", asOf).Msg("rankings saved")
	return nil
}

// LatestRankings returns the most recent snapshot, best rank first.
func (r *Repository) LatestRankings(ctx context.Context, limit int) ([]contracts.ScoreRecord, error) {
	query := `
		SELECT as_of, ticker, code, name, rank, weighted_score, fundamental_score,
			   risk_adjusted_score, overheat_penalty, composite_score, probabilities
		FROM rankings
		WHERE as_of = (SELECT MAX(as_of) FROM rankings)
		ORDER BY rank
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest rankings: %w", err)
	}
	defer rows.Close()

	var records []contracts.ScoreRecord
	for rows.Next() {
		var rec contracts.ScoreRecord
		var probs []byte
		if err := rows.Scan(&rec.Date, &rec.Ticker, &rec.Code, &rec.Name, &rec.Rank,
			&rec.WeightedScore, &rec.FundamentalScore, &rec.RiskAdjustedScore,
			&rec.OverheatPenalty, &rec.CompositeScore, &probs); err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		if len(probs) > 0 {
			if err := json.Unmarshal(probs, &rec.Probabilities); err != nil {
				return nil, fmt.Errorf("decode probabilities for %s: %w", rec.Ticker, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveTrainingMetrics records one horizon's held-out evaluation.
func (r *Repository) SaveTrainingMetrics(ctx context.Context, metrics []contracts.TrainingMetrics) error {
	if len(metrics) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO training_runs
			(horizon, trained_at, auc, accuracy, precision_score, recall, f1, log_loss,
			 train_samples, val_samples, test_samples, feature_count, best_iteration, top_features)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	for _, m := range metrics {
		top, err := json.Marshal(m.TopFeatures)
		if err != nil {
			return fmt.Errorf("marshal top features for horizon %d: %w", m.Horizon, err)
		}
		batch.Queue(query, m.Horizon, m.TrainedAt, m.AUC, m.Accuracy, m.Precision,
			m.Recall, m.F1, m.LogLoss, m.TrainSamples, m.ValSamples, m.TestSamples,
			m.FeatureCount, m.BestIteration, top)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save training metrics: %w", err)
		}
	}

	r.log.Info().Int("horizons", len(metrics)).Msg("training metrics saved")
	return nil
}

// LatestTrainingMetrics returns the newest run per horizon.
func (r *Repository) LatestTrainingMetrics(ctx context.Context) ([]contracts.TrainingMetrics, error) {
	query := `
		SELECT DISTINCT ON (horizon)
			   horizon, trained_at, auc, accuracy, precision_score, recall, f1, log_loss,
			   train_samples, val_samples, test_samples, feature_count, best_iteration, top_features
		FROM training_runs
		ORDER BY horizon, trained_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query training metrics: %w", err)
	}
	defer rows.Close()

	var metrics []contracts.TrainingMetrics
	for rows.Next() {
		var m contracts.TrainingMetrics
		var top []byte
		if err := rows.Scan(&m.Horizon, &m.TrainedAt, &m.AUC, &m.Accuracy, &m.Precision,
			&m.Recall, &m.F1, &m.LogLoss, &m.TrainSamples, &m.ValSamples, &m.TestSamples,
			&m.FeatureCount, &m.BestIteration, &top); err != nil {
			return nil, fmt.Errorf("scan training run: %w", err)
		}
		if len(top) > 0 {
			if err := json.Unmarshal(top, &m.TopFeatures); err != nil {
				return nil, fmt.Errorf("decode top features for horizon %d: %w", m.Horizon, err)
			}
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
