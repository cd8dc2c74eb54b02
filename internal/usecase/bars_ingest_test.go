package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrade/internal/domain/models"
	applogger "daytrade/pkg/logger"
)

func TestBarIngestHandler(t *testing.T) {
	barStore := newFakeBarStore()
	metrics := newFakeMetrics()
	handler := NewBarIngestHandler("daytrade.bars", barStore, metrics, applogger.Nop())

	assert.Equal(t, "daytrade.bars", handler.Topic())

	payload, err := json.Marshal(barMessage{
		Symbol: "7203.T",
		Date:   "2024-03-01",
		Open:   100, High: 105, Low: 99, Close: 104, Volume: 1e6,
	})
	require.NoError(t, err)
	require.NoError(t, handler.Handle(context.Background(), payload))

	stored, err := barStore.Query(context.Background(), "7203.T",
		mustDate(t, "2024-03-01"), mustDate(t, "2024-03-01"))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 104.0, stored[0].Close)
	assert.Equal(t, 104.0, stored[0].AdjClose) // defaults to close when absent
	assert.Equal(t, 1, metrics.ingested)
}

func TestBarIngestHandlerRejectsBadPayload(t *testing.T) {
	handler := NewBarIngestHandler("daytrade.bars", newFakeBarStore(), newFakeMetrics(), applogger.Nop())

	assert.Error(t, handler.Handle(context.Background(), []byte("not json")))
	assert.Error(t, handler.Handle(context.Background(), []byte(`{"symbol":"","date":""}`)))
	assert.Error(t, handler.Handle(context.Background(), []byte(`{"symbol":"X","date":"03/01/2024"}`)))
}

func TestStreamIngestorAggregatesTicks(t *testing.T) {
	barStore := newFakeBarStore()
	ingestor := NewStreamIngestor(nil, barStore, &fakePublisher{}, newFakeMetrics(), applogger.Nop(), time.Minute)

	day := mustDate(t, "2024-03-01")
	ticks := []*models.Tick{
		{Symbol: "7203.T", Price: 100, Volume: 10, Timestamp: day.Add(9 * time.Hour)},
		{Symbol: "7203.T", Price: 106, Volume: 5, Timestamp: day.Add(10 * time.Hour)},
		{Symbol: "7203.T", Price: 98, Volume: 7, Timestamp: day.Add(11 * time.Hour)},
		{Symbol: "7203.T", Price: 103, Volume: 3, Timestamp: day.Add(14 * time.Hour)},
	}
	for _, tick := range ticks {
		ingestor.apply(tick)
	}
	ingestor.flush(context.Background())

	stored, err := barStore.Query(context.Background(), "7203.T", day, day)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	bar := stored[0]
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 106.0, bar.High)
	assert.Equal(t, 98.0, bar.Low)
	assert.Equal(t, 103.0, bar.Close)
	assert.Equal(t, 25.0, bar.Volume)
}

func TestStreamIngestorRollsOverDays(t *testing.T) {
	barStore := newFakeBarStore()
	ingestor := NewStreamIngestor(nil, barStore, nil, newFakeMetrics(), applogger.Nop(), time.Minute)

	day1 := mustDate(t, "2024-03-01")
	day2 := mustDate(t, "2024-03-04")
	ingestor.apply(&models.Tick{Symbol: "X", Price: 50, Volume: 1, Timestamp: day1.Add(time.Hour)})
	ingestor.apply(&models.Tick{Symbol: "X", Price: 60, Volume: 2, Timestamp: day2.Add(time.Hour)})
	ingestor.flush(context.Background())

	stored, err := barStore.Query(context.Background(), "X", day1, day2)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].Date.Equal(day1))
	assert.Equal(t, 50.0, stored[0].Close)
	assert.True(t, stored[1].Date.Equal(day2))
	assert.Equal(t, 60.0, stored[1].Open)
}

func TestDatasetBuildJob(t *testing.T) {
	market := &fakeMarketData{bars: map[string]models.Bars{
		"7203.T": syntheticBars("7203.T", 300, 31),
	}}
	builder := NewDatasetBuilder(BuilderConfig{}, market, nil, nil, nil, newFakeMetrics(), applogger.Nop())
	job := NewDatasetBuildJob(builder, applogger.Nop())

	assert.Equal(t, "dataset_build", job.Name())
	assert.Equal(t, DatasetBuildMessageType, job.Type())

	// payloads arrive as generic maps after queue decoding
	payload := map[string]interface{}{
		"symbols": []interface{}{"7203.T"},
		"start":   "2023-01-01",
		"end":     "2023-12-31",
	}
	require.NoError(t, job.Handle(context.Background(), payload))

	assert.Error(t, job.Handle(context.Background(), 42))
}
