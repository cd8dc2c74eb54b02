package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrade/internal/domain/models"
	"daytrade/pkg/cache"
	applogger "daytrade/pkg/logger"
)

// trainTestModel trains a small model on synthetic data and returns its path.
func trainTestModel(t *testing.T, market *fakeMarketData) (string, string) {
	t.Helper()

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	metrics := newFakeMetrics()
	builder := NewDatasetBuilder(BuilderConfig{}, market, nil, nil, nil, metrics, applogger.Nop())
	trainer := NewTrainer(TrainerConfig{
		ModelPath: modelPath,
		CVSplits:  5,
		Params:    testParams(),
	}, builder, metrics, applogger.Nop())

	_, err := trainer.Train(context.Background(), &models.TrainRequest{
		Symbols: []string{"7203.T"},
		Start:   "2023-01-01",
		End:     "2024-12-31",
	})
	require.NoError(t, err)
	return modelPath, filepath.Join(dir, "train_report.json")
}

func TestPredictorPredict(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{
		"7203.T": syntheticBars("7203.T", 400, 21),
	}}
	modelPath, reportPath := trainTestModel(t, market)

	barStore := newFakeBarStore()
	require.NoError(t, barStore.StoreBatch(context.Background(), market.bars["7203.T"]))

	predictor := NewPredictor(PredictorConfig{
		ModelPath:    modelPath,
		ReportPath:   reportPath,
		LookbackDays: 100000, // the fixture dates are in the past
	}, barStore, market, nil, newFakeMetrics(), applogger.Nop())

	pred, err := predictor.Predict(context.Background(), "7203.T")
	require.NoError(t, err)

	assert.Equal(t, "7203.T", pred.Symbol)
	assert.GreaterOrEqual(t, pred.ProbaUp, 0.0)
	assert.LessOrEqual(t, pred.ProbaUp, 1.0)
	assert.Contains(t, []string{"up", "down"}, pred.Direction)
	assert.InDelta(t, 0.5, pred.Threshold, 1e-9)
	assert.NotEmpty(t, pred.ModelID)

	bars := market.bars["7203.T"]
	assert.True(t, pred.Date.Equal(bars[len(bars)-1].Date))
}

func TestPredictorUsesCache(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{
		"7203.T": syntheticBars("7203.T", 400, 22),
	}}
	modelPath, reportPath := trainTestModel(t, market)

	mem := cache.NewMemoryCache()
	defer mem.Close()

	predictor := NewPredictor(PredictorConfig{
		ModelPath:    modelPath,
		ReportPath:   reportPath,
		LookbackDays: 100000,
		CacheTTL:     time.Minute,
	}, nil, market, mem, newFakeMetrics(), applogger.Nop())

	first, err := predictor.Predict(context.Background(), "7203.T")
	require.NoError(t, err)

	// second call is served from cache even if the provider goes away
	market.bars = nil
	second, err := predictor.Predict(context.Background(), "7203.T")
	require.NoError(t, err)
	assert.Equal(t, first.ProbaUp, second.ProbaUp)
	assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt))
}

func TestPredictorMissingModel(t *testing.T) {
	predictor := NewPredictor(PredictorConfig{
		ModelPath: filepath.Join(t.TempDir(), "missing.json"),
	}, nil, &fakeMarketData{}, nil, newFakeMetrics(), applogger.Nop())

	_, err := predictor.Predict(context.Background(), "7203.T")
	assert.Error(t, err)
}

func TestPredictorLatestReport(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{
		"7203.T": syntheticBars("7203.T", 400, 23),
	}}
	modelPath, reportPath := trainTestModel(t, market)

	predictor := NewPredictor(PredictorConfig{
		ModelPath:  modelPath,
		ReportPath: reportPath,
	}, nil, market, nil, newFakeMetrics(), applogger.Nop())

	report, err := predictor.LatestReport()
	require.NoError(t, err)
	assert.NotEmpty(t, report.ModelID)
	assert.Len(t, report.CVFolds, 5)
}
