package usecase

import (
	"context"
	"sync"
	"time"

	"daytrade/internal/domain/models"
	drepo "daytrade/internal/domain/repository"
	applogger "daytrade/pkg/logger"
	"daytrade/pkg/util"
)

// StreamIngestor rolls live ticks up into daily bars and periodically
// flushes them to the bar store. The store's replacing merge semantics
// make repeated flushes of the same trading day idempotent.
type StreamIngestor struct {
	stream    drepo.MarketStream
	barStore  drepo.BarStore
	publisher drepo.Publisher
	metrics   drepo.Metrics
	logger    *applogger.Logger

	flushInterval time.Duration

	mu     sync.Mutex
	open   map[string]*models.Bar // in-progress bar per symbol
	closed models.Bars            // completed bars awaiting flush
}

// NewStreamIngestor creates a tick-to-bar aggregator. publisher may be nil.
func NewStreamIngestor(
	stream drepo.MarketStream,
	barStore drepo.BarStore,
	publisher drepo.Publisher,
	metrics drepo.Metrics,
	l *applogger.Logger,
	flushInterval time.Duration,
) *StreamIngestor {
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	return &StreamIngestor{
		stream:        stream,
		barStore:      barStore,
		publisher:     publisher,
		metrics:       metrics,
		logger:        l,
		flushInterval: flushInterval,
		open:          make(map[string]*models.Bar),
	}
}

// Run consumes the stream until ctx is cancelled, reconnecting on read
// failures. A final flush runs before returning.
func (s *StreamIngestor) Run(ctx context.Context) error {
	if err := s.stream.Connect(ctx); err != nil {
		return err
	}
	if err := s.stream.Subscribe(ctx); err != nil {
		return err
	}

	flushTicker := time.NewTicker(s.flushInterval)
	defer flushTicker.Stop()
	defer s.flush(context.Background())
	defer s.stream.Close()

	for {
		ticks, errs := s.stream.Read(ctx)
	readLoop:
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-flushTicker.C:
				s.flush(ctx)
			case tick, ok := <-ticks:
				if !ok {
					break readLoop
				}
				s.apply(tick)
			case err, ok := <-errs:
				if !ok {
					break readLoop
				}
				s.logger.Warn("stream read error", applogger.Error(err))
				s.metrics.RecordError("stream_read")
				break readLoop
			}
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := s.stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("stream reconnect failed", applogger.Error(err))
			s.metrics.RecordError("stream_reconnect")
			return err
		}
		s.logger.Info("stream reconnected")
	}
}

// apply folds one tick into the symbol's in-progress daily bar. A tick on
// a new calendar day first retires the previous bar into the flush set.
func (s *StreamIngestor) apply(tick *models.Tick) {
	day := util.TruncateToDay(tick.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	bar, ok := s.open[tick.Symbol]
	if !ok || !bar.Date.Equal(day) {
		if ok {
			s.closed = append(s.closed, *bar)
		}
		s.open[tick.Symbol] = &models.Bar{
			Symbol:   tick.Symbol,
			Date:     day,
			Open:     tick.Price,
			High:     tick.Price,
			Low:      tick.Price,
			Close:    tick.Price,
			AdjClose: tick.Price,
			Volume:   tick.Volume,
		}
		return
	}

	if tick.Price > bar.High {
		bar.High = tick.Price
	}
	if tick.Price < bar.Low {
		bar.Low = tick.Price
	}
	bar.Close = tick.Price
	bar.AdjClose = tick.Price
	bar.Volume += tick.Volume
}

// flush writes completed bars plus a snapshot of every in-progress bar.
func (s *StreamIngestor) flush(ctx context.Context) {
	s.mu.Lock()
	bars := make(models.Bars, 0, len(s.closed)+len(s.open))
	bars = append(bars, s.closed...)
	for _, bar := range s.open {
		bars = append(bars, *bar)
	}
	closed := s.closed
	s.closed = nil
	s.mu.Unlock()

	if len(bars) == 0 {
		return
	}

	if err := s.barStore.StoreBatch(ctx, bars); err != nil {
		s.logger.Error("flush stream bars failed", applogger.Error(err))
		s.metrics.RecordError("stream_flush")
		s.mu.Lock()
		s.closed = append(closed, s.closed...)
		s.mu.Unlock()
		return
	}
	for i := range bars {
		s.metrics.RecordBarIngested("stream", bars[i].Symbol)
		s.metrics.RecordLastClose(bars[i].Symbol, bars[i].Close)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishBars(ctx, bars); err != nil {
			s.logger.Warn("publish stream bars failed", applogger.Error(err))
		}
	}

	s.logger.Debug("flushed stream bars", applogger.Int("symbols", len(bars)))
}
