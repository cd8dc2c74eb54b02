package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrade/internal/domain/models"
	"daytrade/internal/model"
	applogger "daytrade/pkg/logger"
)

func TestTrainerEndToEnd(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{
		"7203.T": syntheticBars("7203.T", 400, 11),
		"6758.T": syntheticBars("6758.T", 400, 12),
	}}
	metrics := newFakeMetrics()
	builder := NewDatasetBuilder(BuilderConfig{}, market, nil, nil, nil, metrics, applogger.Nop())

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "direction_model.json")
	trainer := NewTrainer(TrainerConfig{
		ModelPath: modelPath,
		CVSplits:  5,
		Params:    model.DefaultParams(),
	}, builder, metrics, applogger.Nop())

	report, err := trainer.Train(context.Background(), &models.TrainRequest{
		Symbols: []string{"7203.T", "6758.T"},
		Start:   "2023-01-01",
		End:     "2024-12-31",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ModelID)
	assert.Len(t, report.CVFolds, 5)
	assert.Greater(t, report.BestIteration, 0)
	assert.Greater(t, report.NumRows, 0)
	assert.NotEmpty(t, report.Importance)
	assert.Greater(t, report.Validation.Support, 0)

	// model and report landed on disk
	loaded, err := model.Load(modelPath)
	require.NoError(t, err)
	assert.Equal(t, report.NumFeatures, len(loaded.Features))

	_, err = os.Stat(filepath.Join(dir, "train_report.json"))
	require.NoError(t, err)
}

func TestTrainerTooFewRows(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{
		"7203.T": syntheticBars("7203.T", 25, 13),
	}}
	metrics := newFakeMetrics()
	builder := NewDatasetBuilder(BuilderConfig{}, market, nil, nil, nil, metrics, applogger.Nop())
	trainer := NewTrainer(TrainerConfig{
		ModelPath: filepath.Join(t.TempDir(), "m.json"),
		CVSplits:  5,
		Params:    model.DefaultParams(),
	}, builder, metrics, applogger.Nop())

	_, err := trainer.Train(context.Background(), &models.TrainRequest{
		Symbols: []string{"7203.T"},
		Start:   "2023-01-01",
		End:     "2023-12-31",
	})
	assert.Error(t, err)
}
