package contracts

import "time"

// Hyperparams is the boosted-tree hyperparameter set, mirroring the
// conventional LightGBM parameter names.
type Hyperparams struct {
	NumLeaves       int     `json:"num_leaves"`
	LearningRate    float64 `json:"learning_rate"`
	FeatureFraction float64 `json:"feature_fraction"`
	BaggingFraction float64 `json:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`
	MinChildSamples int     `json:"min_child_samples"`
	LambdaL1        float64 `json:"lambda_l1"`
	LambdaL2        float64 `json:"lambda_l2"`
	MaxDepth        int     `json:"max_depth"` // 0 = unlimited
	NumIterations   int     `json:"num_iterations"`
	EarlyStopping   int     `json:"early_stopping_rounds"`
	Seed            int64   `json:"seed"`
}

// DefaultHyperparams returns the fixed parameter set used when the search is
// skipped or produces no valid trial.
func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		NumLeaves:       63,
		LearningRate:    0.05,
		FeatureFraction: 0.8,
		BaggingFraction: 0.8,
		BaggingFreq:     5,
		MinChildSamples: 20,
		LambdaL1:        0,
		LambdaL2:        0,
		MaxDepth:        0,
		NumIterations:   1000,
		EarlyStopping:   50,
		Seed:            42,
	}
}

// FeatureImportance is one feature's accumulated split gain in a trained model.
type FeatureImportance struct {
	Name string  `json:"name"`
	Gain float64 `json:"gain"`
}

// TrainingMetrics records the held-out test evaluation for one horizon's
// model, persisted alongside the artifact.
type TrainingMetrics struct {
	Horizon       int                 `json:"horizon"`
	AUC           float64             `json:"auc"`
	Accuracy      float64             `json:"accuracy"`
	Precision     float64             `json:"precision"`
	Recall        float64             `json:"recall"`
	F1            float64             `json:"f1"`
	LogLoss       float64             `json:"log_loss"`
	TrainSamples  int                 `json:"train_samples"`
	ValSamples    int                 `json:"val_samples"`
	TestSamples   int                 `json:"test_samples"`
	FeatureCount  int                 `json:"feature_count"`
	BestIteration int                 `json:"best_iteration"`
	TopFeatures   []FeatureImportance `json:"top_features"`
	TrainedAt     time.Time           `json:"trained_at"`
}
