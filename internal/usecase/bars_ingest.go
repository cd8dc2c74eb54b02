package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"daytrade/internal/domain/models"
	drepo "daytrade/internal/domain/repository"
	applogger "daytrade/pkg/logger"
	"daytrade/pkg/util"
)

// BarIngestHandler consumes bar messages from the bus and writes them to
// the bar store. It implements kafka.MessageHandler.
type BarIngestHandler struct {
	topic    string
	barStore drepo.BarStore
	metrics  drepo.Metrics
	logger   *applogger.Logger
}

// NewBarIngestHandler creates a handler for the given bar topic.
func NewBarIngestHandler(topic string, barStore drepo.BarStore, metrics drepo.Metrics, l *applogger.Logger) *BarIngestHandler {
	return &BarIngestHandler{topic: topic, barStore: barStore, metrics: metrics, logger: l}
}

func (h *BarIngestHandler) Topic() string { return h.topic }

type barMessage struct {
	Symbol   string  `json:"symbol"`
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
	Volume   float64 `json:"volume"`
}

// Handle decodes and stores one bar message. Malformed payloads are
// errors so the consumer's retry and dead-letter path applies.
func (h *BarIngestHandler) Handle(ctx context.Context, payload []byte) error {
	var msg barMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.metrics.RecordError("bar_decode")
		return fmt.Errorf("decode bar: %w", err)
	}
	if msg.Symbol == "" || msg.Date == "" {
		h.metrics.RecordError("bar_invalid")
		return fmt.Errorf("bar message missing symbol or date")
	}

	date, err := util.ParseDate(msg.Date, time.UTC)
	if err != nil {
		h.metrics.RecordError("bar_invalid")
		return fmt.Errorf("parse bar date %q: %w", msg.Date, err)
	}

	bar := &models.Bar{
		Symbol:   msg.Symbol,
		Date:     date,
		Open:     msg.Open,
		High:     msg.High,
		Low:      msg.Low,
		Close:    msg.Close,
		AdjClose: msg.AdjClose,
		Volume:   msg.Volume,
	}
	if bar.AdjClose == 0 {
		bar.AdjClose = bar.Close
	}

	if err := h.barStore.Store(ctx, bar); err != nil {
		h.metrics.RecordError("bar_store")
		return fmt.Errorf("store bar: %w", err)
	}

	h.metrics.RecordBarIngested("kafka", bar.Symbol)
	h.metrics.RecordLastClose(bar.Symbol, bar.Close)
	h.logger.Debug("bar ingested",
		applogger.String("symbol", bar.Symbol),
		applogger.String("date", msg.Date))
	return nil
}
