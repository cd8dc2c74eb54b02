package repository

import (
	"context"
	"time"

	"daytrade/internal/domain/models"
)

// MarketData fetches historical daily bars from an external provider.
type MarketData interface {
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (models.Bars, error)
}

// MarketStream delivers live trade ticks from a realtime feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher emits bar and pipeline events to the message bus.
type Publisher interface {
	PublishBar(ctx context.Context, bar *models.Bar) error
	PublishBars(ctx context.Context, bars models.Bars) error
	PublishEvent(ctx context.Context, event string, payload interface{}) error
	Close() error
}

// BarStore persists daily bars.
type BarStore interface {
	Init(ctx context.Context) error // ensure tables
	Store(ctx context.Context, bar *models.Bar) error
	StoreBatch(ctx context.Context, bars models.Bars) error
	Query(ctx context.Context, symbol string, from, to time.Time) (models.Bars, error)
	LatestDate(ctx context.Context, symbol string) (time.Time, error)
	Health(ctx context.Context) error
	Close() error
}

// DatasetStore persists materialized feature rows.
type DatasetStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, runID string, rows []models.FeatureRow) error
	Query(ctx context.Context, runID string, symbol string) ([]models.FeatureRow, error)
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordBarIngested(source, symbol string)
	RecordRowsBuilt(n int)
	RecordError(kind string)
	RecordLastClose(symbol string, close float64)
	RecordUpProbability(symbol string, proba float64)
	RecordLatency(op string, seconds float64)
}
