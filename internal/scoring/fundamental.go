package scoring

import (
	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// Per-ratio valuation ramps. Each available ratio is normalized to [0, 1] by
// a clipped linear scale over its plausible range, then blended by weight.
// Ratios absent from the record simply drop out of the blend; a fully empty
// record scores the neutral 0.5.
func FundamentalScore(r *contracts.FundamentalRatios) float64 {
	if r == nil {
		return 0.5
	}

	var scores []float64
	var weights []float64
	add := func(score, weight float64) {
		scores = append(scores, clamp01(score))
		weights = append(weights, weight)
	}

	// PER 5..50, cheaper is better; negative earnings are excluded.
	if per := r.PERTrailing; per != nil && *per > 0 {
		add((50-*per)/45, 1.5)
	}
	// PBR 0.5..5, cheaper is better.
	if pbr := r.PBR; pbr != nil && *pbr > 0 {
		add((5-*pbr)/4.5, 1.0)
	}
	// ROE full marks at 30%.
	if roe := r.ROE; roe != nil {
		add(*roe/0.3, 1.5)
	}
	if om := r.OperatingMargin; om != nil {
		add(*om/0.3, 1.0)
	}
	// Revenue growth -10%..+40%.
	if g := r.RevenueGrowth; g != nil {
		add((*g+0.1)/0.5, 1.0)
	}
	if eq := r.EquityRatio; eq != nil {
		add(*eq, 0.8)
	}
	// Dividend yield full marks at 5%.
	if dy := r.DividendYield; dy != nil && *dy >= 0 {
		add(*dy/0.05, 0.5)
	}
	// FCF margin -5%..+20%.
	if fcf := r.FCFMargin; fcf != nil {
		add((*fcf+0.05)/0.25, 0.7)
	}

	if len(scores) == 0 {
		return 0.5
	}

	var weighted, total float64
	for i := range scores {
		weighted += scores[i] * weights[i]
		total += weights[i]
	}
	return weighted / total
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
