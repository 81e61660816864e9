package evaluate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// BacktestResult summarizes a daily-rebalanced top-N simulation.
type BacktestResult struct {
	Days             int       `json:"days"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	CumulativeReturn float64   `json:"cumulative_return"`
	AnnualizedSharpe float64   `json:"annualized_sharpe"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	WinRate          float64   `json:"win_rate"`
	RiskScore        float64   `json:"risk_score"`
	DailyReturns     []float64 `json:"-"`
}

// Backtester simulates an equal-weight portfolio of the top N scored
// instruments, rebalanced every session at the close.
type Backtester struct {
	topN int
	log  zerolog.Logger
}

func NewBacktester(topN int, log zerolog.Logger) *Backtester {
	return &Backtester{
		topN: topN,
		log:  log.With().Str("component", "backtester").Logger(),
	}
}

type candidate struct {
	score  float64
	ret    float64
	ticker string
}

// Run walks every session covered by the panels. For each date it ranks the
// instruments by scores[ticker][row], holds the top N equal-weight through the
// next close, and realizes that close-to-close return. Dates where fewer than
// one instrument has both a score and a next close are skipped.
func (b *Backtester) Run(ctx context.Context, panels map[string]*contracts.FeaturePanel, scores map[string][]float64) (*BacktestResult, error) {
	byDate := make(map[time.Time][]candidate)

	for ticker, panel := range panels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series, ok := scores[ticker]
		if !ok {
			continue
		}
		if len(series) != panel.Len() {
			return nil, fmt.Errorf("score series for %s has %d values for %d dates", ticker, len(series), panel.Len())
		}
		closes, err := panel.Column(contracts.ColClose)
		if err != nil {
			return nil, fmt.Errorf("panel %s: %w", ticker, err)
		}

		for i := 0; i < panel.Len()-1; i++ {
			if math.IsNaN(series[i]) || closes[i] <= 0 || math.IsNaN(closes[i+1]) {
				continue
			}
			byDate[panel.Dates[i]] = append(byDate[panel.Dates[i]], candidate{
				score:  series[i],
				ret:    closes[i+1]/closes[i] - 1,
				ticker: ticker,
			})
		}
	}

	if len(byDate) == 0 {
		return nil, fmt.Errorf("%w: no tradable sessions", contracts.ErrInsufficientData)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })

	daily := make([]float64, 0, len(dates))
	for _, d := range dates {
		candidates := byDate[d]
		sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].score > candidates[b].score })
		held := candidates
		if len(held) > b.topN {
			held = held[:b.topN]
		}
		var sum float64
		for _, c := range held {
			sum += c.ret
		}
		daily = append(daily, sum/float64(len(held)))
	}

	metrics := ComputeRiskMetrics(daily)
	cumulative := 1.0
	for _, r := range daily {
		cumulative *= 1 + r
	}

	result := &BacktestResult{
		Days:             len(daily),
		Start:            dates[0],
		End:              dates[len(dates)-1],
		CumulativeReturn: cumulative - 1,
		AnnualizedSharpe: metrics.Sharpe,
		MaxDrawdown:      metrics.MaxDrawdown,
		WinRate:          metrics.WinRate,
		RiskScore:        RiskScore(daily),
		DailyReturns:     daily,
	}

	b.log.Info().
		Int("days", result.Days).
		Float64("cumulative_return", result.CumulativeReturn).
		Float64("sharpe", result.AnnualizedSharpe).
		Float64("max_drawdown", result.MaxDrawdown).
		Float64("win_rate", result.WinRate).
		Msg("backtest complete")
	return result, nil
}
