package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// PooledTrainingSet is the concatenation of all instruments' labeled rows for
// one horizon, sorted by date. It is used only for model fitting, never for
// per-instrument backtest attribution.
type PooledTrainingSet struct {
	Horizon  int
	Features []string
	Dates    []time.Time // one entry per row, non-decreasing
	Tickers  []string    // one entry per row
	X        [][]float64
	Y        []float64
}

// Len returns the number of pooled rows.
func (p *PooledTrainingSet) Len() int {
	return len(p.Y)
}

// BuildPool concatenates every panel's rows for the given horizon, dropping
// rows whose target or any feature value is NaN. The feature space is the
// intersection of all participating panels' feature columns, so an instrument
// missing a column narrows the space instead of losing every pooled row.
func BuildPool(panels map[string]*contracts.FeaturePanel, horizon int) (*PooledTrainingSet, error) {
	targetCol := contracts.TargetColumn(horizon)

	tickers := make([]string, 0, len(panels))
	for ticker, panel := range panels {
		if panel.HasColumn(targetCol) {
			tickers = append(tickers, ticker)
		}
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("horizon %d: %w", horizon, contracts.ErrEmptyPool)
	}
	sort.Strings(tickers)

	features := featureIntersection(panels, tickers)
	if len(features) == 0 {
		return nil, fmt.Errorf("horizon %d: no shared feature columns", horizon)
	}

	pool := &PooledTrainingSet{Horizon: horizon, Features: features}

	for _, ticker := range tickers {
		panel := panels[ticker]
		targets, err := panel.Column(targetCol)
		if err != nil {
			continue
		}

		for row := 0; row < panel.Len(); row++ {
			if math.IsNaN(targets[row]) {
				continue
			}
			vector := panel.RowVector(features, row)
			if hasNaN(vector) {
				continue
			}
			pool.Dates = append(pool.Dates, panel.Dates[row])
			pool.Tickers = append(pool.Tickers, ticker)
			pool.X = append(pool.X, vector)
			pool.Y = append(pool.Y, targets[row])
		}
	}

	if pool.Len() == 0 {
		return nil, fmt.Errorf("horizon %d: %w", horizon, contracts.ErrEmptyPool)
	}

	pool.sortByDate()
	return pool, nil
}

// featureIntersection keeps the feature columns present in every listed
// panel, in the first panel's column order.
func featureIntersection(panels map[string]*contracts.FeaturePanel, tickers []string) []string {
	features := panels[tickers[0]].FeatureColumns()
	for _, ticker := range tickers[1:] {
		panel := panels[ticker]
		kept := features[:0]
		for _, name := range features {
			if panel.HasColumn(name) {
				kept = append(kept, name)
			}
		}
		features = kept
	}
	return features
}

// sortByDate stable-sorts all row slices by date, preserving per-instrument
// row order within a date.
func (p *PooledTrainingSet) sortByDate() {
	indices := make([]int, p.Len())
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return p.Dates[indices[a]].Before(p.Dates[indices[b]])
	})

	dates := make([]time.Time, p.Len())
	tickers := make([]string, p.Len())
	x := make([][]float64, p.Len())
	y := make([]float64, p.Len())
	for to, from := range indices {
		dates[to] = p.Dates[from]
		tickers[to] = p.Tickers[from]
		x[to] = p.X[from]
		y[to] = p.Y[from]
	}
	p.Dates, p.Tickers, p.X, p.Y = dates, tickers, x, y
}

// subset returns a new set containing the rows whose date is in the
// membership set.
func (p *PooledTrainingSet) subset(member map[time.Time]bool) *PooledTrainingSet {
	out := &PooledTrainingSet{Horizon: p.Horizon, Features: p.Features}
	for i := range p.Y {
		if !member[p.Dates[i]] {
			continue
		}
		out.Dates = append(out.Dates, p.Dates[i])
		out.Tickers = append(out.Tickers, p.Tickers[i])
		out.X = append(out.X, p.X[i])
		out.Y = append(out.Y, p.Y[i])
	}
	return out
}

// UniqueDates returns the sorted unique dates present in the pool.
func (p *PooledTrainingSet) UniqueDates() []time.Time {
	var unique []time.Time
	for i, d := range p.Dates {
		if i == 0 || !d.Equal(p.Dates[i-1]) {
			unique = append(unique, d)
		}
	}
	return unique
}

func hasNaN(vector []float64) bool {
	for _, v := range vector {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
