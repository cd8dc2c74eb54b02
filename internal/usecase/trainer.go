package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"daytrade/internal/domain/models"
	drepo "daytrade/internal/domain/repository"
	"daytrade/internal/model"
	applogger "daytrade/pkg/logger"
)

// TrainerConfig holds training settings.
type TrainerConfig struct {
	ModelPath  string
	ReportPath string
	CVSplits   int
	Params     model.Params
}

// Trainer builds a dataset and fits the direction classifier with
// walk-forward cross validation.
type Trainer struct {
	cfg     TrainerConfig
	builder *DatasetBuilder
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// NewTrainer creates a trainer on top of the dataset builder.
func NewTrainer(cfg TrainerConfig, builder *DatasetBuilder, metrics drepo.Metrics, l *applogger.Logger) *Trainer {
	if cfg.CVSplits < 2 {
		cfg.CVSplits = 5
	}
	if cfg.ReportPath == "" && cfg.ModelPath != "" {
		cfg.ReportPath = filepath.Join(filepath.Dir(cfg.ModelPath), "train_report.json")
	}
	return &Trainer{cfg: cfg, builder: builder, metrics: metrics, logger: l}
}

// Train materializes the dataset, cross-validates, fits the final model,
// and persists both the model and a training report.
func (t *Trainer) Train(ctx context.Context, req *models.TrainRequest) (*models.TrainReport, error) {
	started := time.Now()

	build, err := t.builder.Build(ctx, &models.BuildDatasetRequest{
		Symbols: req.Symbols,
		Start:   req.Start,
		End:     req.End,
		Margin:  req.Margin,
	})
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	X, y := toMatrix(build.Rows, build.Features)
	n := len(X)
	if n < 4*t.cfg.CVSplits {
		return nil, fmt.Errorf("train: %d rows is too few for %d-fold walk-forward validation", n, t.cfg.CVSplits)
	}

	folds, err := model.TimeSeriesSplit(n, t.cfg.CVSplits)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	cvFolds := make([]models.EvalMetrics, 0, len(folds))
	for i, fold := range folds {
		trainX, trainY := gather(X, y, fold.TrainIdx)
		valX, valY := gather(X, y, fold.ValIdx)

		clf := model.NewClassifier(t.cfg.Params, build.Features)
		if err := clf.Fit(trainX, trainY, valX, valY); err != nil {
			return nil, fmt.Errorf("train: fold %d: %w", i, err)
		}
		probas, err := clf.PredictProba(valX)
		if err != nil {
			return nil, fmt.Errorf("train: fold %d: %w", i, err)
		}

		m := model.Evaluate(valY, probas)
		cvFolds = append(cvFolds, m)
		t.logger.Info("cv fold evaluated",
			applogger.Int("fold", i),
			applogger.Int("train_rows", len(trainX)),
			applogger.Int("val_rows", len(valX)),
			applogger.Float64("auc", m.AUC),
			applogger.Float64("accuracy", m.Accuracy))
	}

	// final fit over all rows, with the most recent fold as the early
	// stopping eval set
	last := folds[len(folds)-1]
	valX, valY := gather(X, y, last.ValIdx)

	clf := model.NewClassifier(t.cfg.Params, build.Features)
	if err := clf.Fit(X, y, valX, valY); err != nil {
		return nil, fmt.Errorf("train: final fit: %w", err)
	}
	probas, err := clf.PredictProba(valX)
	if err != nil {
		return nil, fmt.Errorf("train: final eval: %w", err)
	}
	validation := model.Evaluate(valY, probas)

	if t.cfg.ModelPath != "" {
		if err := model.Save(clf, t.cfg.ModelPath); err != nil {
			t.metrics.RecordError("save_model")
			return nil, fmt.Errorf("train: %w", err)
		}
	}

	report := &models.TrainReport{
		ModelID:       uuid.NewString(),
		TrainedAt:     time.Now().UTC(),
		Symbols:       req.Symbols,
		NumRows:       n,
		NumFeatures:   len(build.Features),
		BestIteration: clf.BestIteration,
		Validation:    validation,
		CVFolds:       cvFolds,
		Importance:    clf.FeatureImportance(),
	}
	if t.cfg.ReportPath != "" {
		if err := writeReport(t.cfg.ReportPath, report); err != nil {
			t.logger.Warn("write train report failed", applogger.Error(err))
		}
	}

	t.metrics.RecordLatency("train", time.Since(started).Seconds())
	t.logger.Info("model trained",
		applogger.String("model_id", report.ModelID),
		applogger.Int("rows", n),
		applogger.Int("features", len(build.Features)),
		applogger.Int("best_iteration", clf.BestIteration),
		applogger.Float64("val_auc", validation.AUC),
		applogger.Duration("duration", time.Since(started)))
	return report, nil
}

// toMatrix lays rows out in date order as a dense matrix. Missing
// features become NaN so tree routing handles them.
func toMatrix(rows []models.FeatureRow, features []string) ([][]float64, []float64) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		vec := make([]float64, len(features))
		for j, name := range features {
			v, ok := r.Features[name]
			if !ok {
				v = math.NaN()
			}
			vec[j] = v
		}
		X[i] = vec
		y[i] = float64(r.YUp)
	}
	return X, y
}

func gather(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	outX := make([][]float64, len(idx))
	outY := make([]float64, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}

func writeReport(path string, report *models.TrainReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}
