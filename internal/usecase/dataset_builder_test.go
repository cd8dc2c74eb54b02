package usecase

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrade/internal/domain/models"
	applogger "daytrade/pkg/logger"
	"daytrade/pkg/util"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := util.ParseDate(s, time.UTC)
	require.NoError(t, err)
	return d
}

func TestDatasetBuilderEndToEnd(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{
		"7203.T": syntheticBars("7203.T", 300, 1),
		"6758.T": syntheticBars("6758.T", 300, 2),
	}}
	barStore := newFakeBarStore()
	datasetStore := newFakeDatasetStore()
	publisher := &fakePublisher{}
	metrics := newFakeMetrics()

	outPath := filepath.Join(t.TempDir(), "dataset.csv")
	builder := NewDatasetBuilder(
		BuilderConfig{OutputPath: outPath},
		market, barStore, datasetStore, publisher, metrics, applogger.Nop(),
	)

	result, err := builder.Build(context.Background(), &models.BuildDatasetRequest{
		Symbols: []string{"7203.T", "6758.T"},
		Start:   "2023-01-01",
		End:     "2023-12-31",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Info.RunID)
	assert.NotEmpty(t, result.Features)
	assert.Greater(t, result.Info.NumRows, 400)
	assert.Equal(t, len(result.Rows), result.Info.NumRows)

	// rows came out in date order
	for i := 1; i < len(result.Rows); i++ {
		assert.False(t, result.Rows[i].Date.Before(result.Rows[i-1].Date))
	}

	// labels agree with next-day returns
	for _, r := range result.Rows {
		if r.NextRet > 0 {
			assert.Equal(t, uint8(1), r.YUp)
		} else {
			assert.Equal(t, uint8(0), r.YUp)
		}
	}

	// excluded raw columns never reach the selected set
	for _, name := range result.Features {
		assert.NotContains(t, []string{"open", "high", "low", "close", "adj_close", "volume"}, name)
	}

	// fetched bars were persisted and published
	stored, err := barStore.Query(context.Background(), "7203.T", result.Info.Start, result.Info.End)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
	assert.Contains(t, publisher.events, "dataset.built")

	// rows landed in the dataset store
	rows, err := datasetStore.Query(context.Background(), result.Info.RunID, "7203.T")
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	assert.Equal(t, result.Info.NumRows, metrics.rowsBuilt)
}

func TestDatasetBuilderSkipsShortHistory(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{
		"OK":    syntheticBars("OK", 300, 3),
		"SHORT": syntheticBars("SHORT", 5, 4),
	}}

	builder := NewDatasetBuilder(BuilderConfig{}, market, nil, nil, nil, newFakeMetrics(), applogger.Nop())
	result, err := builder.Build(context.Background(), &models.BuildDatasetRequest{
		Symbols: []string{"OK", "SHORT"},
		Start:   "2023-01-01",
		End:     "2023-12-31",
	})
	require.NoError(t, err)

	for _, r := range result.Rows {
		assert.Equal(t, "OK", r.Symbol)
	}
}

func TestDatasetBuilderNoData(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{}}
	builder := NewDatasetBuilder(BuilderConfig{}, market, nil, nil, nil, newFakeMetrics(), applogger.Nop())

	_, err := builder.Build(context.Background(), &models.BuildDatasetRequest{
		Symbols: []string{"NONE"},
	})
	assert.Error(t, err)
}

func TestDatasetBuilderRejectsInvertedWindow(t *testing.T) {
	builder := NewDatasetBuilder(BuilderConfig{}, &fakeMarketData{}, nil, nil, nil, newFakeMetrics(), applogger.Nop())

	_, err := builder.Build(context.Background(), &models.BuildDatasetRequest{
		Symbols: []string{"X"},
		Start:   "2024-01-01",
		End:     "2023-01-01",
	})
	assert.Error(t, err)
}

func TestWriteDatasetCSV(t *testing.T) {
	rows := []models.FeatureRow{
		{
			Symbol:   "7203.T",
			Date:     mustDate(t, "2024-01-04"),
			Features: map[string]float64{"rsi_14": 55.5, "macd": math.NaN()},
			NextRet:  0.012,
			YUp:      1,
		},
		{
			Symbol:   "7203.T",
			Date:     mustDate(t, "2024-01-05"),
			Features: map[string]float64{"rsi_14": 48.0, "macd": -0.2},
			NextRet:  -0.004,
			YUp:      0,
		},
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeDatasetCSV(path, rows, []string{"rsi_14", "macd"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"symbol", "date", "rsi_14", "macd", "next_ret", "y_up"}, records[0])
	assert.Equal(t, "7203.T", records[1][0])
	assert.Equal(t, "2024-01-04", records[1][1])
	assert.Equal(t, "", records[1][3]) // NaN renders empty
	assert.Equal(t, "1", records[1][5])
	assert.Equal(t, "0", records[2][5])
}
