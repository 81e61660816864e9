package features

import (
	"fmt"
	"math"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// Indicator periods. Warmup rows are NaN and get dropped at pooling time.
const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	bbPeriod   = 20
	bbStd      = 2.0
	atrPeriod  = 14
)

var (
	smaPeriods = []int{5, 25, 75, 200}
	emaPeriods = []int{5, 25}
)

// Enrich computes the technical indicator columns on a raw OHLCV panel,
// in place. Requires close; high/low/volume unlock the range and volume
// families when present.
func Enrich(panel *contracts.FeaturePanel) error {
	closes, err := panel.Column(contracts.ColClose)
	if err != nil {
		return fmt.Errorf("panel %s: %w", panel.Ticker, err)
	}
	n := panel.Len()

	must := func(name string, values []float64) {
		// Length always matches the date index here.
		_ = panel.AddColumn(name, values)
	}

	// Returns.
	must("return_1d", pctChange(closes, 1))
	must("return_5d", pctChange(closes, 5))
	must("return_20d", pctChange(closes, 20))
	must("log_return_1d", logReturns(closes))

	// Moving averages and their deviations from the close.
	smas := make(map[int][]float64, len(smaPeriods))
	for _, period := range smaPeriods {
		values := sma(closes, period)
		smas[period] = values
		must(fmt.Sprintf("sma_%d", period), values)
		must(fmt.Sprintf("sma_%d_deviation", period), deviation(closes, values))
	}
	for _, period := range emaPeriods {
		values := ema(closes, period)
		must(fmt.Sprintf("ema_%d", period), values)
		must(fmt.Sprintf("ema_%d_deviation", period), deviation(closes, values))
	}
	up, down := crossSignals(smas[5], smas[25])
	must("golden_cross_5_25", up)
	must("dead_cross_5_25", down)
	up, down = crossSignals(smas[25], smas[75])
	must("golden_cross_25_75", up)
	must("dead_cross_25_75", down)

	// MACD.
	macdLine := subtract(ema(closes, macdFast), ema(closes, macdSlow))
	signalLine := ema(macdLine, macdSignal)
	must("macd", macdLine)
	must("macd_signal", signalLine)
	must("macd_histogram", subtract(macdLine, signalLine))
	crossUp, _ := crossSignals(macdLine, signalLine)
	must("macd_cross_up", crossUp)

	// RSI and zone flags.
	rsi := wilderRSISeries(closes, rsiPeriod)
	must("rsi", rsi)
	must("rsi_oversold", threshold(rsi, func(v float64) bool { return v < 30 }))
	must("rsi_overbought", threshold(rsi, func(v float64) bool { return v > 70 }))

	// Bollinger bands.
	bbMiddle := sma(closes, bbPeriod)
	bbSigma := rollingStd(closes, bbPeriod)
	bbUpper := make([]float64, n)
	bbLower := make([]float64, n)
	bbWidth := make([]float64, n)
	bbPosition := make([]float64, n)
	for i := 0; i < n; i++ {
		bbUpper[i] = bbMiddle[i] + bbStd*bbSigma[i]
		bbLower[i] = bbMiddle[i] - bbStd*bbSigma[i]
		bbWidth[i] = safeDiv(bbUpper[i]-bbLower[i], bbMiddle[i])
		bbPosition[i] = safeDiv(closes[i]-bbLower[i], bbUpper[i]-bbLower[i])
	}
	must("bb_width", bbWidth)
	must("bb_position", bbPosition)

	// Annualized rolling volatility of log returns.
	logRet := logReturns(closes)
	for _, period := range []int{5, 20, 60} {
		vol := rollingStd(logRet, period)
		for i := range vol {
			vol[i] *= math.Sqrt(252)
		}
		must(fmt.Sprintf("volatility_%dd", period), vol)
	}

	if panel.HasColumn(contracts.ColHigh) && panel.HasColumn(contracts.ColLow) {
		highs, _ := panel.Column(contracts.ColHigh)
		lows, _ := panel.Column(contracts.ColLow)

		atr := averageTrueRange(highs, lows, closes, atrPeriod)
		must("atr", atr)
		must("atr_ratio", deviationBase(atr, closes))

		for _, period := range []int{20, 60} {
			hi := rollingMax(highs, period)
			lo := rollingMin(lows, period)
			position := make([]float64, n)
			for i := 0; i < n; i++ {
				position[i] = safeDiv(closes[i]-lo[i], hi[i]-lo[i])
			}
			must(fmt.Sprintf("price_position_%dd", period), position)
		}

		hi252 := rollingMax(highs, 252)
		lo252 := rollingMin(lows, 252)
		from52High := make([]float64, n)
		from52Low := make([]float64, n)
		for i := 0; i < n; i++ {
			from52High[i] = safeDiv(closes[i]-hi252[i], hi252[i])
			from52Low[i] = safeDiv(closes[i]-lo252[i], lo252[i])
		}
		must("from_52w_high", from52High)
		must("from_52w_low", from52Low)
	}

	if panel.HasColumn(contracts.ColVolume) {
		volume, _ := panel.Column(contracts.ColVolume)
		vol5 := sma(volume, 5)
		vol25 := sma(volume, 25)
		must("volume_ratio_5", ratio(volume, vol5))
		must("volume_ratio_25", ratio(volume, vol25))
		must("volume_change", pctChange(volume, 1))
	}

	// Calendar categoricals; excluded from model input but kept for reporting.
	dayOfWeek := make([]float64, n)
	month := make([]float64, n)
	for i, d := range panel.Dates {
		dayOfWeek[i] = float64(d.Weekday())
		month[i] = float64(d.Month())
	}
	must(contracts.ColDayOfWeek, dayOfWeek)
	must(contracts.ColMonth, month)

	return nil
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func pctChange(values []float64, lag int) []float64 {
	out := nanSlice(len(values))
	for i := lag; i < len(values); i++ {
		out[i] = safeDiv(values[i]-values[i-lag], values[i-lag])
	}
	return out
}

func logReturns(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 && values[i] > 0 {
			out[i] = math.Log(values[i] / values[i-1])
		}
	}
	return out
}

func sma(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	var sum float64
	for i := range values {
		sum += values[i]
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 && !math.IsNaN(sum) {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// ema seeds from the first defined value and uses the conventional
// 2/(period+1) smoothing.
func ema(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	alpha := 2.0 / float64(period+1)
	seeded := false
	var prev float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

func rollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		var sum float64
		defined := true
		for _, v := range window {
			if math.IsNaN(v) {
				defined = false
				break
			}
			sum += v
		}
		if !defined {
			continue
		}
		mean := sum / float64(period)
		var variance float64
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		out[i] = math.Sqrt(variance / float64(period))
	}
	return out
}

func rollingMax(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		best := math.Inf(-1)
		for _, v := range values[i-period+1 : i+1] {
			if v > best {
				best = v
			}
		}
		out[i] = best
	}
	return out
}

func rollingMin(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		best := math.Inf(1)
		for _, v := range values[i-period+1 : i+1] {
			if v < best {
				best = v
			}
		}
		out[i] = best
	}
	return out
}

// wilderRSISeries is the rolling RSI with Wilder smoothing, one value per row.
func wilderRSISeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

func averageTrueRange(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	tr := nanSlice(n)
	for i := 1; i < n; i++ {
		r := highs[i] - lows[i]
		if d := math.Abs(highs[i] - closes[i-1]); d > r {
			r = d
		}
		if d := math.Abs(lows[i] - closes[i-1]); d > r {
			r = d
		}
		tr[i] = r
	}

	out := nanSlice(n)
	if n <= period {
		return out
	}
	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period] = prev
	for i := period + 1; i < n; i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return out
}

// crossSignals emits 1 on rows where a crosses above (up) or below (down) b.
func crossSignals(a, b []float64) (up, down []float64) {
	n := len(a)
	up = make([]float64, n)
	down = make([]float64, n)
	for i := 1; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) || math.IsNaN(a[i-1]) || math.IsNaN(b[i-1]) {
			continue
		}
		if a[i] > b[i] && a[i-1] <= b[i-1] {
			up[i] = 1
		}
		if a[i] < b[i] && a[i-1] >= b[i-1] {
			down[i] = 1
		}
	}
	return up, down
}

func threshold(values []float64, pred func(float64) bool) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if !math.IsNaN(v) && pred(v) {
			out[i] = 1
		}
	}
	return out
}

func subtract(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func deviation(values, base []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = safeDiv(values[i]-base[i], base[i])
	}
	return out
}

func deviationBase(values, base []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = safeDiv(values[i], base[i])
	}
	return out
}

func ratio(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = safeDiv(a[i], b[i])
	}
	return out
}

func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return math.NaN()
	}
	return num / den
}
