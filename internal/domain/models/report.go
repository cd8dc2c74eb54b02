package models

import "time"

// EvalMetrics holds binary classification metrics for one evaluation set.
type EvalMetrics struct {
	AUC              float64 `json:"auc"`
	Accuracy         float64 `json:"accuracy"`
	Precision        float64 `json:"precision"`
	Recall           float64 `json:"recall"`
	F1               float64 `json:"f1"`
	AveragePrecision float64 `json:"average_precision"`
	Support          int     `json:"support"`
	PositiveRate     float64 `json:"positive_rate"`
}

// FeatureImportance is the accumulated split gain of one feature.
type FeatureImportance struct {
	Name string  `json:"name"`
	Gain float64 `json:"gain"`
}

// TrainReport summarizes one training run.
type TrainReport struct {
	ModelID       string              `json:"model_id"`
	TrainedAt     time.Time           `json:"trained_at"`
	Symbols       []string            `json:"symbols"`
	NumRows       int                 `json:"num_rows"`
	NumFeatures   int                 `json:"num_features"`
	BestIteration int                 `json:"best_iteration"`
	Validation    EvalMetrics         `json:"validation"`
	CVFolds       []EvalMetrics       `json:"cv_folds"`
	Importance    []FeatureImportance `json:"importance"`
}
