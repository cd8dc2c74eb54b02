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

const featureRowsTable = "daytrade.feature_rows"

// CHDatasetStore persists materialized feature rows in ClickHouse so a
// training run can be reproduced or inspected after the fact.
type CHDatasetStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHDatasetStore creates a ClickHouse dataset store.
func NewCHDatasetStore(ch *pkgch.Client, l *applogger.Logger) domrepo.DatasetStore {
	return &CHDatasetStore{db: ch.DB(), l: l}
}

func (s *CHDatasetStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE DATABASE IF NOT EXISTS daytrade`,
		`CREATE TABLE IF NOT EXISTS ` + featureRowsTable + ` (
			run_id   String,
			symbol   String,
			date     Date,
			features Map(String, Float64),
			next_ret Float64,
			y_up     UInt8,
			built_at DateTime DEFAULT now()
		) ENGINE = MergeTree
		ORDER BY (run_id, symbol, date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init dataset store: %w", err)
		}
	}
	return nil
}

func (s *CHDatasetStore) StoreBatch(ctx context.Context, runID string, rows []models.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	const chunkSize = 1000
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, r := range rows[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, runID, r.Symbol, r.Date, r.Features, r.NextRet, r.YUp)
		}
		q := fmt.Sprintf("INSERT INTO %s (run_id, symbol, date, features, next_ret, y_up) VALUES %s",
			featureRowsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store feature rows: %w", err)
		}
	}

	s.l.Debug("stored feature rows",
		applogger.String("run_id", runID),
		applogger.Int("rows", len(rows)))
	return nil
}

func (s *CHDatasetStore) Query(ctx context.Context, runID, symbol string) ([]models.FeatureRow, error) {
	q := fmt.Sprintf(`
        SELECT symbol, date, features, next_ret, y_up
        FROM %s
        WHERE run_id = ? AND symbol = ?
        ORDER BY date ASC
    `, featureRowsTable)
	rows, err := s.db.QueryContext(ctx, q, runID, symbol)
	if err != nil {
		s.l.Error("clickhouse query feature rows error",
			applogger.String("run_id", runID),
			applogger.String("symbol", symbol),
			applogger.Error(err))
		return nil, fmt.Errorf("query feature rows: %w", err)
	}
	defer rows.Close()

	var out []models.FeatureRow
	for rows.Next() {
		var r models.FeatureRow
		var date time.Time
		if err := rows.Scan(&r.Symbol, &date, &r.Features, &r.NextRet, &r.YUp); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		r.Date = date.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CHDatasetStore) Close() error {
	return nil // pool owned by pkg client
}
