package contracts

import "errors"

var (
	// ErrInsufficientData is returned when a panel or pooled set has too few
	// samples or dates for a reliable walk-forward split or lookback window.
	// Callers recover locally (skip the horizon, return the neutral score);
	// it is never fatal to sibling instruments or horizons.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrEmptyPool is returned when no instrument contributed any labeled rows
	// for a horizon's pooled training set.
	ErrEmptyPool = errors.New("pooled training set is empty")

	// ErrNoModelAvailable is returned when no trained model exists for any
	// horizon at inference time. This is the one hard failure of a prediction
	// run: a ranking with zero signal is not meaningful output.
	ErrNoModelAvailable = errors.New("no trained model available for any horizon")

	// ErrModelNotFound is returned when the artifact for a single horizon is
	// missing on disk. The horizon is simply absent from served predictions.
	ErrModelNotFound = errors.New("model artifact not found")

	// ErrMissingColumn is returned when a panel lacks a required column.
	ErrMissingColumn = errors.New("missing panel column")

	// ErrNoValidTrials signals that the hyperparameter search produced no
	// successful trial; the trainer falls back to default hyperparameters.
	ErrNoValidTrials = errors.New("hyperparameter search produced no valid trial")
)
