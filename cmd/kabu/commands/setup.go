package commands

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/pipeline"
	"github.com/tenchu0314/kabu-predictor/internal/store"
	"github.com/tenchu0314/kabu-predictor/pkg/config"
	"github.com/tenchu0314/kabu-predictor/pkg/database"
	"github.com/tenchu0314/kabu-predictor/pkg/logger"
)

// app bundles the wired components every command starts from. The database is
// nil when DATABASE_URL is unset; ranking persistence is then skipped and the
// file-based outputs remain the source of truth.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *database.DB
	repo     *store.Repository
	pipeline *pipeline.Pipeline
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.repo = store.NewRepository(db.Pool, log)
	}

	a.pipeline = pipeline.New(cfg, a.repo, log)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
