package evaluate

import (
	"math"
)

// Risk score composition. Each ingredient is mapped to [0, 1] by a clipped
// linear ramp over its plausible range, then combined; annualized volatility
// enters as a penalty rather than a reward.
const (
	sharpeWeight   = 0.30
	sortinoWeight  = 0.20
	drawdownWeight = 0.20
	winRateWeight  = 0.15
	volPenWeight   = 0.15

	tradingDaysPerYear = 252
)

// RiskMetrics summarizes a daily return series.
type RiskMetrics struct {
	Sharpe      float64
	Sortino     float64
	MaxDrawdown float64 // <= 0
	WinRate     float64
	Volatility  float64 // annualized
}

// ComputeRiskMetrics derives annualized risk statistics from daily returns.
func ComputeRiskMetrics(returns []float64) RiskMetrics {
	n := float64(len(returns))
	if n == 0 {
		return RiskMetrics{}
	}

	var sum float64
	var wins float64
	for _, r := range returns {
		sum += r
		if r > 0 {
			wins++
		}
	}
	mean := sum / n

	var variance float64
	var negatives []float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	std := math.Sqrt(variance / n)

	m := RiskMetrics{
		WinRate:     wins / n,
		Volatility:  std * math.Sqrt(tradingDaysPerYear),
		MaxDrawdown: maxDrawdown(returns),
	}
	if std > 0 {
		m.Sharpe = mean / std * math.Sqrt(tradingDaysPerYear)
	}

	// Sortino uses the standard deviation of the negative returns around
	// their own mean. With no losses at all the ratio is undefined; the
	// substitute is 1.5x Sharpe as an optimistic bound.
	if len(negatives) == 0 {
		m.Sortino = 1.5 * m.Sharpe
	} else if downsideStd := stddev(negatives); downsideStd > 0 {
		m.Sortino = mean / downsideStd * math.Sqrt(tradingDaysPerYear)
	}
	return m
}

// stddev is the population standard deviation of values around their mean.
func stddev(values []float64) float64 {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / n)
}

// RiskScore maps a daily return series to [0, 1]. An empty series and a
// degenerate zero-variance series both get the neutral 0.5. Window-length
// policy belongs to the caller; see RiskScoreFromCloses.
func RiskScore(returns []float64) float64 {
	if len(returns) == 0 {
		return 0.5
	}
	m := ComputeRiskMetrics(returns)
	if m.Volatility == 0 {
		return 0.5
	}

	sharpeScore := clamp01((m.Sharpe + 2) / 6)
	sortinoScore := clamp01((m.Sortino + 2) / 8)
	drawdownScore := clamp01(1 + m.MaxDrawdown/0.3)
	winRateScore := clamp01((m.WinRate - 0.3) / 0.4)
	volPenalty := clamp01((m.Volatility - 0.30) / 0.40)

	score := sharpeWeight*sharpeScore +
		sortinoWeight*sortinoScore +
		drawdownWeight*drawdownScore +
		winRateWeight*winRateScore -
		volPenWeight*volPenalty
	return clamp01(score)
}

// RiskScoreFromCloses computes the trailing risk score over the last lookback
// daily returns derived from a close series. A history shorter than the
// lookback is scored neutral 0.5 rather than estimated from a partial window.
func RiskScoreFromCloses(closes []float64, lookback int) float64 {
	returns := DailyReturns(closes)
	if len(returns) < lookback {
		return 0.5
	}
	return RiskScore(returns[len(returns)-lookback:])
}

// DailyReturns converts a close series to simple daily returns, skipping
// undefined points.
func DailyReturns(closes []float64) []float64 {
	var returns []float64
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		returns = append(returns, cur/prev-1)
	}
	return returns
}

// maxDrawdown is the worst peak-to-trough decline of the compounded series,
// reported as a non-positive fraction.
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := equity/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
