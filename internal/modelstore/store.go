package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/lightgbm"
)

// Model is the self-describing persisted artifact for one horizon: the
// ensemble plus the exact feature order it was trained on.
type Model struct {
	Horizon   int                   `json:"horizon"`
	Features  []string              `json:"features"`
	Params    contracts.Hyperparams `json:"params"`
	Booster   *lightgbm.Booster     `json:"booster"`
	TrainedAt time.Time             `json:"trained_at"`
}

// Store reads and writes model artifacts under a single directory,
// one model file and one metrics file per horizon.
type Store struct {
	dir string
	log zerolog.Logger
}

func New(dir string, log zerolog.Logger) *Store {
	return &Store{
		dir: dir,
		log: log.With().Str("component", "modelstore").Logger(),
	}
}

func (s *Store) modelPath(horizon int) string {
	return filepath.Join(s.dir, fmt.Sprintf("model_%dd.json", horizon))
}

func (s *Store) metricsPath(horizon int) string {
	return filepath.Join(s.dir, fmt.Sprintf("metrics_%dd.json", horizon))
}

// Save persists the model and its metrics atomically: each file is written to
// a temp sibling and renamed into place, so readers never see a torn artifact.
func (s *Store) Save(model *Model, metrics *contracts.TrainingMetrics) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	if err := writeJSONAtomic(s.modelPath(model.Horizon), model); err != nil {
		return fmt.Errorf("save model for horizon %d: %w", model.Horizon, err)
	}
	if metrics != nil {
		if err := writeJSONAtomic(s.metricsPath(model.Horizon), metrics); err != nil {
			return fmt.Errorf("save metrics for horizon %d: %w", model.Horizon, err)
		}
	}

	s.log.Info().
		Int("horizon", model.Horizon).
		Int("features", len(model.Features)).
		Int("trees", len(model.Booster.Trees)).
		Str("path", s.modelPath(model.Horizon)).
		Msg("model saved")
	return nil
}

// Load reads one horizon's model. A missing file maps to ErrModelNotFound.
func (s *Store) Load(horizon int) (*Model, error) {
	raw, err := os.ReadFile(s.modelPath(horizon))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: horizon %d (%s)", contracts.ErrModelNotFound, horizon, s.modelPath(horizon))
		}
		return nil, fmt.Errorf("read model for horizon %d: %w", horizon, err)
	}

	var model Model
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("decode model for horizon %d: %w", horizon, err)
	}
	if model.Booster == nil {
		return nil, fmt.Errorf("model for horizon %d has no ensemble", horizon)
	}
	return &model, nil
}

// LoadAll returns every available model among the requested horizons.
// Missing horizons are logged and skipped; callers decide whether an
// incomplete set is acceptable.
func (s *Store) LoadAll(horizons []int) (map[int]*Model, error) {
	models := make(map[int]*Model, len(horizons))
	for _, h := range horizons {
		model, err := s.Load(h)
		if err != nil {
			if errors.Is(err, contracts.ErrModelNotFound) {
				s.log.Warn().Int("horizon", h).Msg("no model artifact for horizon")
				continue
			}
			return nil, err
		}
		models[h] = model
	}
	return models, nil
}

// LoadMetrics reads the persisted test metrics for one horizon.
func (s *Store) LoadMetrics(horizon int) (*contracts.TrainingMetrics, error) {
	raw, err := os.ReadFile(s.metricsPath(horizon))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: metrics for horizon %d", contracts.ErrModelNotFound, horizon)
		}
		return nil, fmt.Errorf("read metrics for horizon %d: %w", horizon, err)
	}
	var m contracts.TrainingMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode metrics for horizon %d: %w", horizon, err)
	}
	return &m, nil
}

func writeJSONAtomic(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
