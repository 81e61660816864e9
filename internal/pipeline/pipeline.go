package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/dataset"
	"github.com/tenchu0314/kabu-predictor/internal/evaluate"
	"github.com/tenchu0314/kabu-predictor/internal/features"
	"github.com/tenchu0314/kabu-predictor/internal/marketdata"
	"github.com/tenchu0314/kabu-predictor/internal/modelstore"
	"github.com/tenchu0314/kabu-predictor/internal/predict"
	"github.com/tenchu0314/kabu-predictor/internal/report"
	"github.com/tenchu0314/kabu-predictor/internal/scoring"
	"github.com/tenchu0314/kabu-predictor/internal/store"
	"github.com/tenchu0314/kabu-predictor/internal/train"
	"github.com/tenchu0314/kabu-predictor/internal/universe"
	"github.com/tenchu0314/kabu-predictor/pkg/config"
	"github.com/tenchu0314/kabu-predictor/pkg/httputil"
)

// historyDays is the calendar window fetched per instrument, wide enough for
// the longest label horizon plus the feature warmup on top of two years of
// training data.
const historyDays = 1095

// indexTicker is the market index fetched alongside stocks for the
// cross-sectional features.
const (
	indexTicker = "^nkx"
	indexName   = "nikkei"
)

// Pipeline assembles the full workflow: universe, quotes, features, training,
// inference, ranking and reporting. The ranking repository is optional and
// nil when no database is configured.
type Pipeline struct {
	cfg      *config.Config
	universe *universe.Builder
	fetcher  *marketdata.Fetcher
	cache    *marketdata.Cache
	indexes  *marketdata.Cache
	models   *modelstore.Store
	trainer  *train.Trainer
	ranker   *scoring.Ranker
	reporter *report.Writer
	repo     *store.Repository
	log      zerolog.Logger
}

func New(cfg *config.Config, repo *store.Repository, log zerolog.Logger) *Pipeline {
	client := httputil.New(cfg.FetchInterval, log)
	cache := marketdata.NewCache(cfg.DataDir, log)
	models := modelstore.New(cfg.ModelDir, log)

	weights := scoring.Weights{
		Prediction:  cfg.PredictionWeight,
		Fundamental: cfg.FundamentalWeight,
		Risk:        cfg.RiskAdjustedWeight,
		OverheatCap: cfg.OverheatCap,
	}

	return &Pipeline{
		cfg:      cfg,
		universe: universe.NewBuilder(client, cfg.StockListURL, cfg.MarketCapFloor, filepath.Dir(cfg.DataDir), log),
		fetcher:  marketdata.NewFetcher(client, cache, cfg.QuoteBaseURL, log),
		cache:    cache,
		indexes:  marketdata.NewCache(cfg.IndexDir, log),
		models:   models,
		trainer:  train.New(models, cfg.SearchTrials, cfg.SearchTimeout, cfg.Optimize, log),
		ranker:   scoring.NewRanker(weights, cfg.RiskLookback, log),
		reporter: report.NewWriter(cfg.OutputDir, cfg.TopN, log),
		repo:     repo,
		log:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Universe exposes the universe builder for direct management commands.
func (p *Pipeline) Universe() *universe.Builder {
	return p.universe
}

// FetchData refreshes the universe and downloads quote history for every
// member plus the market index.
func (p *Pipeline) FetchData(ctx context.Context) error {
	stocks, err := p.universe.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh universe: %w", err)
	}

	to := time.Now()
	from := to.AddDate(0, 0, -historyDays)

	tickers := make([]string, len(stocks))
	for i, s := range stocks {
		tickers[i] = s.Ticker()
	}
	fetched, err := p.fetcher.FetchAll(ctx, tickers, from, to)
	if err != nil {
		return err
	}
	if fetched == 0 {
		return fmt.Errorf("quote refresh: %w: no instrument fetched", contracts.ErrInsufficientData)
	}

	if panel, err := p.fetcher.Fetch(ctx, indexTicker, from, to); err != nil {
		p.log.Warn().Err(err).Msg("index fetch failed, market features will be skipped")
	} else {
		panel.Ticker = indexName
		if err := p.indexes.Save(panel); err != nil {
			p.log.Warn().Err(err).Msg("index cache write failed")
		}
	}
	return nil
}

// Train fits one model per configured horizon on the pooled universe and
// persists artifacts, metrics, and (when configured) a database record.
func (p *Pipeline) Train(ctx context.Context) ([]contracts.TrainingMetrics, error) {
	panels, err := p.enrichedPanels()
	if err != nil {
		return nil, err
	}

	// Inference-time panels carry features only; training also needs the
	// forward-looking label columns.
	for ticker, panel := range panels {
		if err := dataset.GenerateLabels(panel, p.horizonDays()); err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("label build failed, instrument dropped")
			delete(panels, ticker)
		}
	}

	metrics, err := p.trainer.TrainAll(ctx, panels, p.horizonDays())
	if err != nil {
		return nil, err
	}

	if p.repo != nil {
		if err := p.repo.SaveTrainingMetrics(ctx, metrics); err != nil {
			p.log.Error().Err(err).Msg("training metrics persistence failed")
		}
	}
	return metrics, nil
}

// Rank runs inference over the cached universe, fuses the scores, writes the
// daily report and persists the snapshot when a database is configured.
func (p *Pipeline) Rank(ctx context.Context) ([]contracts.ScoreRecord, error) {
	panels, err := p.enrichedPanels()
	if err != nil {
		return nil, err
	}

	predictor, err := p.newPredictor()
	if err != nil {
		return nil, err
	}

	predictions, err := predictor.PredictAll(ctx, panels)
	if err != nil {
		return nil, err
	}
	if len(predictions) == 0 {
		return nil, fmt.Errorf("ranking: %w: no instrument scored", contracts.ErrInsufficientData)
	}

	closes := make(map[string][]float64, len(panels))
	for ticker, panel := range panels {
		if series, err := panel.Column(contracts.ColClose); err == nil {
			closes[ticker] = series
		}
	}

	records := p.ranker.Score(predictions, p.loadFundamentals(), closes)
	p.attachMetadata(records)

	// Panels may end on different sessions; the run is dated by the latest.
	asOf := records[0].Date
	for _, rec := range records[1:] {
		if rec.Date.After(asOf) {
			asOf = rec.Date
		}
	}
	if _, err := p.reporter.Write(asOf, records); err != nil {
		return nil, err
	}
	if p.repo != nil {
		if err := p.repo.SaveRankings(ctx, asOf, records); err != nil {
			p.log.Error().Err(err).Msg("ranking persistence failed")
		}
	}
	return records, nil
}

// Backtest replays the models over the cached history and evaluates a daily
// top-N strategy.
func (p *Pipeline) Backtest(ctx context.Context) (*evaluate.BacktestResult, error) {
	panels, err := p.enrichedPanels()
	if err != nil {
		return nil, err
	}

	predictor, err := p.newPredictor()
	if err != nil {
		return nil, err
	}

	scores := make(map[string][]float64, len(panels))
	for ticker, panel := range panels {
		series, err := predictor.ScoreSeries(panel)
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("instrument excluded from backtest")
			continue
		}
		scores[ticker] = series
	}

	return evaluate.NewBacktester(p.cfg.TopN, p.log).Run(ctx, panels, scores)
}

// RunDaily is the scheduled morning workflow: refresh data, then rank.
func (p *Pipeline) RunDaily(ctx context.Context) error {
	if err := p.FetchData(ctx); err != nil {
		return err
	}
	_, err := p.Rank(ctx)
	return err
}

// RunWeekly is the scheduled retraining workflow: refresh data, then train.
func (p *Pipeline) RunWeekly(ctx context.Context) error {
	if err := p.FetchData(ctx); err != nil {
		return err
	}
	_, err := p.Train(ctx)
	return err
}

// enrichedPanels loads every cached panel and derives the feature set, adding
// index-relative features when an index panel is cached.
func (p *Pipeline) enrichedPanels() (map[string]*contracts.FeaturePanel, error) {
	panels, err := p.cache.LoadAll()
	if err != nil {
		return nil, err
	}
	if len(panels) == 0 {
		return nil, fmt.Errorf("feature build: %w: no cached panels, run fetch first", contracts.ErrInsufficientData)
	}

	indexPanel, err := p.indexes.Load(indexName)
	if err != nil {
		p.log.Debug().Err(err).Msg("no index panel cached")
		indexPanel = nil
	}

	for ticker, panel := range panels {
		if err := features.Enrich(panel); err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("feature build failed, instrument dropped")
			delete(panels, ticker)
			continue
		}
		if indexPanel != nil {
			if err := features.AddMarketFeatures(panel, indexName, indexPanel); err != nil {
				p.log.Warn().Err(err).Str("ticker", ticker).Msg("market features skipped")
			}
		}
	}
	if len(panels) == 0 {
		return nil, fmt.Errorf("feature build: %w: every instrument dropped", contracts.ErrInsufficientData)
	}
	return panels, nil
}

func (p *Pipeline) newPredictor() (*predict.Predictor, error) {
	models, err := p.models.LoadAll(p.horizonDays())
	if err != nil {
		return nil, err
	}
	return predict.New(models, p.horizonWeights(), p.log)
}

func (p *Pipeline) horizonDays() []int {
	days := make([]int, len(p.cfg.Horizons))
	for i, h := range p.cfg.Horizons {
		days[i] = h.Days
	}
	return days
}

func (p *Pipeline) horizonWeights() map[int]float64 {
	weights := make(map[int]float64, len(p.cfg.Horizons))
	for _, h := range p.cfg.Horizons {
		weights[h.Days] = h.Weight
	}
	return weights
}

// loadFundamentals reads the optional per-ticker ratio file maintained next to
// the quote cache. Instruments without an entry score neutral.
func (p *Pipeline) loadFundamentals() map[string]*contracts.FundamentalRatios {
	path := filepath.Join(filepath.Dir(p.cfg.DataDir), "fundamentals.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.log.Warn().Err(err).Str("path", path).Msg("fundamentals file unreadable")
		}
		return nil
	}

	fundamentals := make(map[string]*contracts.FundamentalRatios)
	if err := json.Unmarshal(raw, &fundamentals); err != nil {
		p.log.Warn().Err(err).Str("path", path).Msg("fundamentals file malformed")
		return nil
	}
	p.log.Info().Int("instruments", len(fundamentals)).Msg("fundamentals loaded")
	return fundamentals
}

// attachMetadata fills code and name from the saved universe listing.
func (p *Pipeline) attachMetadata(records []contracts.ScoreRecord) {
	stocks, err := p.universe.Load()
	if err != nil {
		p.log.Debug().Err(err).Msg("no universe metadata available")
		return
	}
	byTicker := make(map[string]universe.Stock, len(stocks))
	for _, s := range stocks {
		byTicker[s.Ticker()] = s
	}
	for i := range records {
		if s, ok := byTicker[records[i].Ticker]; ok {
			records[i].Code = s.Code
			records[i].Name = s.Name
		}
	}
}
