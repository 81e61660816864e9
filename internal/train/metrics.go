package train

import (
	"math"

	"github.com/tenchu0314/kabu-predictor/internal/lightgbm"
)

// evaluation holds held-out classification metrics at the 0.5 threshold.
type evaluation struct {
	AUC       float64
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	LogLoss   float64
}

// evaluate scores probability predictions against binary labels. Precision,
// recall and F1 follow the zero-division convention of reporting 0.
func evaluate(labels, probs []float64) evaluation {
	var tp, fp, tn, fn float64
	var logLoss float64

	for i := range labels {
		p := probs[i]
		clamped := math.Max(1e-15, math.Min(1-1e-15, p))
		if labels[i] > 0.5 {
			logLoss -= math.Log(clamped)
			if p > 0.5 {
				tp++
			} else {
				fn++
			}
		} else {
			logLoss -= math.Log(1 - clamped)
			if p > 0.5 {
				fp++
			} else {
				tn++
			}
		}
	}

	n := float64(len(labels))
	ev := evaluation{
		AUC:     lightgbm.AUC(labels, probs),
		LogLoss: logLoss / n,
	}
	if n > 0 {
		ev.Accuracy = (tp + tn) / n
	}
	if tp+fp > 0 {
		ev.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		ev.Recall = tp / (tp + fn)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	return ev
}
