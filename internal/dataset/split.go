package dataset

import (
	"fmt"
	"time"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// Walk-forward window caps: the most recent windows stay small to bound the
// variance of the latest regime while leaving most data for fitting.
const (
	maxTestDays       = 60
	maxValidationDays = 20
)

// WalkForwardSplit partitions a pooled set into train/validation/test subsets
// by unique date: the last min(60, D/5) dates are the test window, the
// min(20, D/10) before that are validation, and the remainder is training.
// The three date sets are pairwise disjoint with max(train) < min(validation)
// < min(test), which rules out look-ahead leakage by construction.
func WalkForwardSplit(pool *PooledTrainingSet) (train, validation, test *PooledTrainingSet, err error) {
	dates := pool.UniqueDates()
	total := len(dates)

	testDays := min(maxTestDays, total/5)
	valDays := min(maxValidationDays, total/10)
	trainEnd := total - testDays - valDays

	if trainEnd <= 0 {
		return nil, nil, nil, fmt.Errorf(
			"%w: %d unique dates leave no training window (test=%d, validation=%d)",
			contracts.ErrInsufficientData, total, testDays, valDays)
	}

	train = pool.subset(dateSet(dates[:trainEnd]))
	validation = pool.subset(dateSet(dates[trainEnd : trainEnd+valDays]))
	test = pool.subset(dateSet(dates[trainEnd+valDays:]))

	return train, validation, test, nil
}

func dateSet(dates []time.Time) map[time.Time]bool {
	member := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		member[d] = true
	}
	return member
}
