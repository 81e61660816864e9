package scoring

import (
	"math"
)

// Overheat thresholds and the excess range over which each penalty ramps from
// 0 to 1: RSI saturates at its natural ceiling of 100, the moving-average
// deviation at +30%, the 5-session return at +20%.
const (
	overheatMinSessions = 30

	rsiPeriod    = 14
	rsiThreshold = 75.0
	rsiExcess    = 100.0 - rsiThreshold

	smaPeriod    = 25
	devThreshold = 0.15
	devExcess    = 0.15

	returnSessions  = 5
	returnThreshold = 0.10
	returnExcess    = 0.10

	maxSignalWeight  = 0.7
	meanSignalWeight = 0.3
)

// OverheatPenalty scores short-term technical exhaustion in [0, 1] from a
// trailing close series. Histories under 30 sessions always score 0: the
// indicators are too noisy to punish anything on that little data.
//
// The combined penalty weights the single worst signal at 0.7 and the mean of
// the active signals at 0.3, so one extreme indicator dominates without fully
// deciding the result.
func OverheatPenalty(closes []float64) float64 {
	if len(closes) < overheatMinSessions {
		return 0
	}

	var active []float64
	if pen := rampPenalty(wilderRSI(closes, rsiPeriod), rsiThreshold, rsiExcess); pen > 0 {
		active = append(active, pen)
	}
	if pen := rampPenalty(smaDeviation(closes, smaPeriod), devThreshold, devExcess); pen > 0 {
		active = append(active, pen)
	}
	if pen := rampPenalty(trailingReturn(closes, returnSessions), returnThreshold, returnExcess); pen > 0 {
		active = append(active, pen)
	}
	return combinePenalties(active)
}

// rampPenalty maps an indicator value to [0, 1]: zero at or below the
// threshold, linear across the excess range, saturated beyond it.
func rampPenalty(value, threshold, excess float64) float64 {
	if math.IsNaN(value) || value <= threshold {
		return 0
	}
	return clamp01((value - threshold) / excess)
}

// combinePenalties blends the active signals, worst signal weighted heavier
// than the average.
func combinePenalties(active []float64) float64 {
	if len(active) == 0 {
		return 0
	}
	maxPen := active[0]
	var sum float64
	for _, p := range active {
		if p > maxPen {
			maxPen = p
		}
		sum += p
	}
	return maxSignalWeight*maxPen + meanSignalWeight*sum/float64(len(active))
}

// wilderRSI computes RSI over the full series with Wilder smoothing:
// a simple average over the first period, then recursive (n-1)/n blending.
func wilderRSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return math.NaN()
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
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// smaDeviation is the relative deviation of the latest close from its
// trailing simple moving average.
func smaDeviation(closes []float64, period int) float64 {
	if len(closes) < period {
		return math.NaN()
	}
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	sma := sum / float64(period)
	if sma <= 0 {
		return math.NaN()
	}
	return closes[len(closes)-1]/sma - 1
}

// trailingReturn is the simple return over the last n sessions.
func trailingReturn(closes []float64, sessions int) float64 {
	if len(closes) < sessions+1 {
		return math.NaN()
	}
	base := closes[len(closes)-1-sessions]
	if base <= 0 {
		return math.NaN()
	}
	return closes[len(closes)-1]/base - 1
}
