package features

import (
	"fmt"
	"math"
	"time"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

const correlationPeriod = 20

// AddMarketFeatures adds index-linked columns to a stock panel: index
// returns, rolling correlations, relative strength, and the index's own
// trend state. Index closes are aligned to the stock's date index by exact
// date, forward-filled across index holidays.
func AddMarketFeatures(panel *contracts.FeaturePanel, indexName string, index *contracts.FeaturePanel) error {
	stockCloses, err := panel.Column(contracts.ColClose)
	if err != nil {
		return fmt.Errorf("panel %s: %w", panel.Ticker, err)
	}
	indexCloses, err := index.Column(contracts.ColClose)
	if err != nil {
		return fmt.Errorf("index %s: %w", indexName, err)
	}

	aligned := alignCloses(index.Dates, indexCloses, panel.Dates)

	must := func(name string, values []float64) {
		_ = panel.AddColumn(name, values)
	}

	indexRet := pctChange(aligned, 1)
	must(fmt.Sprintf("%s_return_1d", indexName), indexRet)
	must(fmt.Sprintf("%s_return_5d", indexName), pctChange(aligned, 5))
	must(fmt.Sprintf("%s_return_20d", indexName), pctChange(aligned, 20))

	stockRet := pctChange(stockCloses, 1)
	must(fmt.Sprintf("corr_%s_20d", indexName), rollingCorrelation(stockRet, indexRet, correlationPeriod))
	must(fmt.Sprintf("corr_%s_60d", indexName), rollingCorrelation(stockRet, indexRet, 60))

	must(fmt.Sprintf("relative_strength_%s_5d", indexName),
		subtract(pctChange(stockCloses, 5), pctChange(aligned, 5)))
	must(fmt.Sprintf("relative_strength_%s_20d", indexName),
		subtract(pctChange(stockCloses, 20), pctChange(aligned, 20)))

	indexSMA := sma(aligned, 25)
	aboveSMA := make([]float64, len(aligned))
	for i := range aligned {
		if !math.IsNaN(indexSMA[i]) && aligned[i] > indexSMA[i] {
			aboveSMA[i] = 1
		}
	}
	must(fmt.Sprintf("%s_above_sma25", indexName), aboveSMA)

	return nil
}

// alignCloses maps an index close series onto a target date index: exact
// match where available, otherwise the most recent prior index close, NaN
// before the index history begins.
func alignCloses(indexDates []time.Time, indexCloses []float64, target []time.Time) []float64 {
	out := nanSlice(len(target))
	j := 0
	last := math.NaN()
	for i, d := range target {
		for j < len(indexDates) && !indexDates[j].After(d) {
			last = indexCloses[j]
			j++
		}
		out[i] = last
	}
	return out
}

func rollingCorrelation(a, b []float64, period int) []float64 {
	out := nanSlice(len(a))
	for i := period - 1; i < len(a); i++ {
		var sumA, sumB float64
		defined := true
		for k := i - period + 1; k <= i; k++ {
			if math.IsNaN(a[k]) || math.IsNaN(b[k]) {
				defined = false
				break
			}
			sumA += a[k]
			sumB += b[k]
		}
		if !defined {
			continue
		}
		meanA := sumA / float64(period)
		meanB := sumB / float64(period)

		var cov, varA, varB float64
		for k := i - period + 1; k <= i; k++ {
			da := a[k] - meanA
			db := b[k] - meanB
			cov += da * db
			varA += da * da
			varB += db * db
		}
		if varA == 0 || varB == 0 {
			continue
		}
		out[i] = cov / math.Sqrt(varA*varB)
	}
	return out
}
