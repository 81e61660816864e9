package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
	"github.com/tenchu0314/kabu-predictor/internal/lightgbm"
	"github.com/tenchu0314/kabu-predictor/internal/marketdata"
	"github.com/tenchu0314/kabu-predictor/internal/modelstore"
	"github.com/tenchu0314/kabu-predictor/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Env:       "development",
		DataDir:   filepath.Join(root, "stocks"),
		IndexDir:  filepath.Join(root, "indices"),
		ModelDir:  filepath.Join(root, "models"),
		OutputDir: filepath.Join(root, "reports"),
		Horizons: []config.HorizonWeight{
			{Days: 1, Weight: 0.30},
			{Days: 5, Weight: 0.30},
			{Days: 20, Weight: 0.25},
			{Days: 60, Weight: 0.15},
		},
		TopN:               3,
		RiskLookback:       60,
		PredictionWeight:   0.50,
		FundamentalWeight:  0.25,
		RiskAdjustedWeight: 0.25,
		OverheatCap:        0.30,
	}
}

func TestHorizonConfiguration(t *testing.T) {
	p := New(testConfig(t), nil, zerolog.Nop())

	require.Equal(t, []int{1, 5, 20, 60}, p.horizonDays())

	weights := p.horizonWeights()
	require.Len(t, weights, 4)
	require.InDelta(t, 0.30, weights[1], 1e-12)
	require.InDelta(t, 0.15, weights[60], 1e-12)
}

func TestLoadFundamentals(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, zerolog.Nop())

	// Absent file scores every instrument neutral.
	require.Nil(t, p.loadFundamentals())

	path := filepath.Join(filepath.Dir(cfg.DataDir), "fundamentals.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"7203.T": {"per_trailing": 9.5, "roe": 0.11}}`), 0o644))

	fundamentals := p.loadFundamentals()
	require.Len(t, fundamentals, 1)
	require.NotNil(t, fundamentals["7203.T"].PERTrailing)
	require.InDelta(t, 9.5, *fundamentals["7203.T"].PERTrailing, 1e-12)

	// A malformed file degrades to neutral instead of failing the run.
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	require.Nil(t, p.loadFundamentals())
}

func TestEnrichedPanels_RequiresCachedData(t *testing.T) {
	p := New(testConfig(t), nil, zerolog.Nop())

	_, err := p.enrichedPanels()
	require.ErrorIs(t, err, contracts.ErrInsufficientData)
}

// seedPanel caches a synthetic OHLCV history long enough for the feature
// warmup.
func seedPanel(t *testing.T, dir, ticker string, sessions int) {
	t.Helper()

	dates := make([]time.Time, sessions)
	day := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		dates[i] = day
		day = day.AddDate(0, 0, 1)
	}

	closes := make([]float64, sessions)
	opens := make([]float64, sessions)
	highs := make([]float64, sessions)
	lows := make([]float64, sessions)
	volumes := make([]float64, sessions)
	for i := range closes {
		// Slow cycle plus session-to-session alternation, so every label
		// window contains both classes.
		price := 1000 + 50*math.Sin(float64(i)/15) + 6*float64(i%2)
		closes[i] = price
		opens[i] = price * 0.998
		highs[i] = price * 1.01
		lows[i] = price * 0.99
		volumes[i] = 1e6
	}

	panel := contracts.NewFeaturePanel(ticker, dates)
	for col, values := range map[string][]float64{
		contracts.ColOpen:   opens,
		contracts.ColHigh:   highs,
		contracts.ColLow:    lows,
		contracts.ColClose:  closes,
		contracts.ColVolume: volumes,
	} {
		require.NoError(t, panel.AddColumn(col, values))
	}
	require.NoError(t, marketdata.NewCache(dir, zerolog.Nop()).Save(panel))
}

// stumpModel persists a single-tree model over one feature.
func stumpModel(t *testing.T, dir string, horizon int, feature string) {
	t.Helper()

	booster := &lightgbm.Booster{
		NumFeatures: 1,
		Trees: []lightgbm.Tree{{
			Nodes: []lightgbm.Node{
				{Feature: 0, Threshold: 0, Left: 1, Right: 2},
				{Leaf: true, Value: -1},
				{Leaf: true, Value: 1},
			},
		}},
		BestIteration: 1,
	}
	model := &modelstore.Model{
		Horizon:   horizon,
		Features:  []string{feature},
		Params:    contracts.DefaultHyperparams(),
		Booster:   booster,
		TrainedAt: time.Now(),
	}
	require.NoError(t, modelstore.New(dir, zerolog.Nop()).Save(model, nil))
}

func TestRank_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, zerolog.Nop())

	seedPanel(t, cfg.DataDir, "7203.T", 300)
	seedPanel(t, cfg.DataDir, "6758.T", 300)
	stumpModel(t, cfg.ModelDir, 1, "return_1d")

	records, err := p.Rank(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Ranks are 1-based and ordered by composite score.
	require.Equal(t, 1, records[0].Rank)
	require.GreaterOrEqual(t, records[0].CompositeScore, records[1].CompositeScore)

	// Without fundamentals every instrument scores the neutral 0.5.
	require.InDelta(t, 0.5, records[0].FundamentalScore, 1e-12)

	// The report directory exists for the as-of date.
	reportDir := filepath.Join(cfg.OutputDir, records[0].Date.Format("2006-01-02"))
	_, err = os.Stat(filepath.Join(reportDir, "report.txt"))
	require.NoError(t, err)
}

func TestRank_ReportDatedByLatestSession(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, zerolog.Nop())

	// One instrument's cache ends a session earlier than the other's; the
	// run is dated by the most recent session, not the top-ranked one.
	seedPanel(t, cfg.DataDir, "7203.T", 300)
	seedPanel(t, cfg.DataDir, "6758.T", 301)
	stumpModel(t, cfg.ModelDir, 1, "return_1d")

	records, err := p.Rank(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.False(t, records[0].Date.Equal(records[1].Date))

	latest := records[0].Date
	if records[1].Date.After(latest) {
		latest = records[1].Date
	}
	_, err = os.Stat(filepath.Join(cfg.OutputDir, latest.Format("2006-01-02"), "report.txt"))
	require.NoError(t, err)
}

func TestTrain_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Horizons = []config.HorizonWeight{{Days: 1, Weight: 1.0}}
	p := New(cfg, nil, zerolog.Nop())

	seedPanel(t, cfg.DataDir, "7203.T", 420)
	seedPanel(t, cfg.DataDir, "6758.T", 420)

	metrics, err := p.Train(context.Background())
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.Equal(t, 1, metrics[0].Horizon)
	require.Greater(t, metrics[0].TrainSamples, 0)

	// The persisted artifact is loadable and carries a fitted ensemble.
	model, err := modelstore.New(cfg.ModelDir, zerolog.Nop()).Load(1)
	require.NoError(t, err)
	require.NotEmpty(t, model.Booster.Trees)
	require.NotEmpty(t, model.Features)
}

func TestBacktest_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, zerolog.Nop())

	seedPanel(t, cfg.DataDir, "7203.T", 300)
	seedPanel(t, cfg.DataDir, "6758.T", 300)
	stumpModel(t, cfg.ModelDir, 1, "return_1d")

	result, err := p.Backtest(context.Background())
	require.NoError(t, err)
	require.Greater(t, result.Days, 0)
	require.GreaterOrEqual(t, result.RiskScore, 0.0)
	require.LessOrEqual(t, result.RiskScore, 1.0)
}
