package usecase

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"daytrade/internal/domain/models"
	"daytrade/internal/model"
)

// testParams keeps unit-test training fast.
func testParams() model.Params {
	p := model.DefaultParams()
	p.NEstimators = 30
	return p
}

// fakeMarketData serves canned bars per symbol.
type fakeMarketData struct {
	bars map[string]models.Bars
	err  error
}

func (f *fakeMarketData) FetchDailyBars(_ context.Context, symbol string, _, _ time.Time) (models.Bars, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[symbol], nil
}

// fakeBarStore is an in-memory BarStore.
type fakeBarStore struct {
	mu   sync.Mutex
	bars map[string]models.Bars
}

func newFakeBarStore() *fakeBarStore {
	return &fakeBarStore{bars: make(map[string]models.Bars)}
}

func (f *fakeBarStore) Init(context.Context) error { return nil }

func (f *fakeBarStore) Store(_ context.Context, b *models.Bar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[b.Symbol] = append(f.bars[b.Symbol], *b)
	return nil
}

func (f *fakeBarStore) StoreBatch(_ context.Context, bars models.Bars) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range bars {
		f.bars[b.Symbol] = append(f.bars[b.Symbol], b)
	}
	return nil
}

func (f *fakeBarStore) Query(_ context.Context, symbol string, from, to time.Time) (models.Bars, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out models.Bars
	for _, b := range f.bars[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBarStore) LatestDate(_ context.Context, symbol string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest time.Time
	for _, b := range f.bars[symbol] {
		if b.Date.After(latest) {
			latest = b.Date
		}
	}
	return latest, nil
}

func (f *fakeBarStore) Health(context.Context) error { return nil }
func (f *fakeBarStore) Close() error                 { return nil }

// fakeDatasetStore records stored rows per run.
type fakeDatasetStore struct {
	mu   sync.Mutex
	runs map[string][]models.FeatureRow
}

func newFakeDatasetStore() *fakeDatasetStore {
	return &fakeDatasetStore{runs: make(map[string][]models.FeatureRow)}
}

func (f *fakeDatasetStore) Init(context.Context) error { return nil }

func (f *fakeDatasetStore) StoreBatch(_ context.Context, runID string, rows []models.FeatureRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runID] = append(f.runs[runID], rows...)
	return nil
}

func (f *fakeDatasetStore) Query(_ context.Context, runID, symbol string) ([]models.FeatureRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FeatureRow
	for _, r := range f.runs[runID] {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDatasetStore) Close() error { return nil }

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	bars   int
	events []string
}

func (f *fakePublisher) PublishBar(context.Context, *models.Bar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars++
	return nil
}

func (f *fakePublisher) PublishBars(_ context.Context, bars models.Bars) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars += len(bars)
	return nil
}

func (f *fakePublisher) PublishEvent(_ context.Context, event string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// fakeMetrics counts recorder calls.
type fakeMetrics struct {
	mu        sync.Mutex
	ingested  int
	rowsBuilt int
	errors    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: make(map[string]int)}
}

func (f *fakeMetrics) RecordBarIngested(string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested++
}

func (f *fakeMetrics) RecordRowsBuilt(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rowsBuilt += n
}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[kind]++
}

func (f *fakeMetrics) RecordLastClose(string, float64)     {}
func (f *fakeMetrics) RecordUpProbability(string, float64) {}
func (f *fakeMetrics) RecordLatency(string, float64)       {}

// syntheticBars generates a seeded random walk of daily bars.
func syntheticBars(symbol string, n int, seed int64) models.Bars {
	rng := rand.New(rand.NewSource(seed))
	bars := make(models.Bars, n)
	price := 100.0
	date := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ret := rng.NormFloat64() * 0.02
		open := price
		price = price * (1 + ret)
		high := math.Max(open, price) * (1 + rng.Float64()*0.005)
		low := math.Min(open, price) * (1 - rng.Float64()*0.005)
		bars[i] = models.Bar{
			Symbol:   symbol,
			Date:     date,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    price,
			AdjClose: price,
			Volume:   1e6 * (0.5 + rng.Float64()),
		}
		date = date.AddDate(0, 0, 1)
	}
	return bars
}
