package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FxPredict/internal/domain/models"
	domrepo "FxPredict/internal/domain/repository"
	applogger "FxPredict/pkg/logger"
)

// sqlDB is the subset of *sql.DB the store uses.
type sqlDB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PingContext(ctx context.Context) error
}

// CHSnapshotStore persists prediction snapshots in ClickHouse, one row per currency.
type CHSnapshotStore struct {
	db    sqlDB
	table string
	l     *applogger.Logger
}

func NewCHSnapshotStore(db sqlDB, table string, l *applogger.Logger) *CHSnapshotStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSnapshotStore{db: db, table: table, l: l}
}

// SnapshotSchema returns the idempotent DDL for the snapshot table.
func SnapshotSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    generated_at   DateTime64(3, 'UTC'),
    currency       LowCardinality(String),
    base_currency  LowCardinality(String),
    current_rate   Float64,
    predicted_rate Float64,
    change_pct     Float64,
    recommendation String
) ENGINE = MergeTree
ORDER BY (currency, generated_at)`, database, table),
	}
}

// Save inserts every prediction of s in one multi-row statement.
func (s *CHSnapshotStore) Save(ctx context.Context, snap models.PredictionSnapshot) error {
	if len(snap.Predictions) == 0 {
		return nil
	}
	values := make([]string, 0, len(snap.Predictions))
	args := make([]interface{}, 0, len(snap.Predictions)*7)
	at := snap.GeneratedAt.UTC()
	for _, p := range snap.Predictions {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			at,
			p.Currency,
			snap.BaseCurrency,
			p.CurrentRate,
			p.PredictedRate,
			p.ChangePercentage,
			p.Recommendation,
		)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (generated_at, currency, base_currency, current_rate, predicted_rate, change_pct, recommendation) VALUES %s",
		s.table, strings.Join(values, ","),
	)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse snapshot insert error",
			applogger.String("table", s.table),
			applogger.Int("rows", len(values)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Recent returns the newest limit rows for currency, newest first.
func (s *CHSnapshotStore) Recent(ctx context.Context, currency string, limit int) ([]models.SnapshotRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	q := fmt.Sprintf(`
        SELECT generated_at, base_currency, currency, current_rate, predicted_rate, change_pct, recommendation
        FROM %s
        WHERE currency = ?
        ORDER BY generated_at DESC
        LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, currency, limit)
	if err != nil {
		s.l.Error("clickhouse snapshot query error", applogger.String("currency", currency), applogger.Error(err))
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]models.SnapshotRecord, 0, limit)
	for rows.Next() {
		var r models.SnapshotRecord
		var at time.Time
		if err := rows.Scan(&at, &r.BaseCurrency, &r.Prediction.Currency, &r.Prediction.CurrentRate,
			&r.Prediction.PredictedRate, &r.Prediction.ChangePercentage, &r.Prediction.Recommendation); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.GeneratedAt = at.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.SnapshotStore = (*CHSnapshotStore)(nil)
