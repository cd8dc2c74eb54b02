package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"daytrade/internal/domain/models"
	domrepo "daytrade/internal/domain/repository"
	pkgch "daytrade/pkg/clickhouse"
	applogger "daytrade/pkg/logger"
)

const barsTable = "daytrade.daily_bars"

// CHBarStore implements BarStore backed by ClickHouse. The table is a
// ReplacingMergeTree keyed on (symbol, date) so re-ingesting a day is a
// no-op after merges.
type CHBarStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHBarStore creates a ClickHouse bar store.
func NewCHBarStore(ch *pkgch.Client, l *applogger.Logger) domrepo.BarStore {
	return &CHBarStore{db: ch.DB(), l: l}
}

func (s *CHBarStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE DATABASE IF NOT EXISTS daytrade`,
		`CREATE TABLE IF NOT EXISTS ` + barsTable + ` (
			symbol    String,
			date      Date,
			open      Float64,
			high      Float64,
			low       Float64,
			close     Float64,
			adj_close Float64,
			volume    Float64,
			ingested_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree(ingested_at)
		ORDER BY (symbol, date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init bar store: %w", err)
		}
	}
	return nil
}

func (s *CHBarStore) Store(ctx context.Context, b *models.Bar) error {
	q := fmt.Sprintf("INSERT INTO %s (symbol, date, open, high, low, close, adj_close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", barsTable)
	_, err := s.db.ExecContext(ctx, q,
		b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
	if err != nil {
		return fmt.Errorf("store bar: %w", err)
	}
	return nil
}

func (s *CHBarStore) StoreBatch(ctx context.Context, bars models.Bars) error {
	if len(bars) == 0 {
		return nil
	}
	// multi-row VALUES in chunks to reduce round-trips
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, b := range bars[start:end] {
			if b.Symbol == "" || b.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, date, open, high, low, close, adj_close, volume) VALUES %s",
			barsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store bar batch: %w", err)
		}
	}

	s.l.Debug("stored bar batch",
		applogger.String("symbol", bars[0].Symbol),
		applogger.Int("rows", len(bars)))
	return nil
}

func (s *CHBarStore) Query(ctx context.Context, symbol string, from, to time.Time) (models.Bars, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT symbol, date, open, high, low, close, adj_close, volume
        FROM %s FINAL
        WHERE symbol = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `, barsTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		s.l.Error("clickhouse query bars error",
			applogger.String("symbol", symbol),
			applogger.Error(err))
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make(models.Bars, 0, 1024)
	for rows.Next() {
		var b models.Bar
		var date time.Time
		if err := rows.Scan(&b.Symbol, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = date.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse query bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)))
	return out, nil
}

func (s *CHBarStore) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	q := fmt.Sprintf("SELECT max(date) FROM %s WHERE symbol = ?", barsTable)
	var latest time.Time
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("latest date: %w", err)
	}
	return latest.UTC(), nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) Close() error {
	return nil // pool owned by pkg client
}
