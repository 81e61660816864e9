package dataset

import (
	"math"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// GenerateLabels adds target_<h>d and future_return_<h>d columns to the panel
// for every horizon. target is 1 when the close h trading days forward exceeds
// the current close, 0 otherwise. The final h rows of each label column are
// NaN because their future close is unknown; they are never imputed, and
// consumers must drop NaN-label rows before training.
func GenerateLabels(panel *contracts.FeaturePanel, horizons []int) error {
	closes, err := panel.Column(contracts.ColClose)
	if err != nil {
		return err
	}

	n := panel.Len()
	for _, h := range horizons {
		targets := make([]float64, n)
		returns := make([]float64, n)

		for i := 0; i < n; i++ {
			if i+h >= n || closes[i] == 0 {
				targets[i] = math.NaN()
				returns[i] = math.NaN()
				continue
			}
			futureReturn := closes[i+h]/closes[i] - 1
			returns[i] = futureReturn
			if futureReturn > 0 {
				targets[i] = 1
			} else {
				targets[i] = 0
			}
		}

		if err := panel.AddColumn(contracts.TargetColumn(h), targets); err != nil {
			return err
		}
		if err := panel.AddColumn(contracts.FutureReturnColumn(h), returns); err != nil {
			return err
		}
	}

	return nil
}
