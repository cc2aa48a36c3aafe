package database

import (
	"context"
	"fmt"
)

// schemaStatements creates every table the screener reads or writes
// 순서 중요: schema → table → index
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS data`,
	`CREATE SCHEMA IF NOT EXISTS selection`,
	`CREATE TABLE IF NOT EXISTS data.daily_prices (
		ticker      TEXT             NOT NULL,
		trade_date  DATE             NOT NULL,
		open_price  DOUBLE PRECISION NOT NULL,
		high_price  DOUBLE PRECISION NOT NULL,
		low_price   DOUBLE PRECISION NOT NULL,
		close_price DOUBLE PRECISION NOT NULL,
		volume      BIGINT           NOT NULL,
		updated_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		PRIMARY KEY (ticker, trade_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON data.daily_prices (trade_date)`,
	`CREATE TABLE IF NOT EXISTS data.universe_snapshots (
		snapshot_date DATE        PRIMARY KEY,
		tickers       TEXT[]      NOT NULL,
		total_count   INT         NOT NULL,
		securities    JSONB       NOT NULL,
		excluded      JSONB       NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS selection.watchlists (
		as_of       DATE        NOT NULL,
		variant     TEXT        NOT NULL,
		config_hash TEXT        NOT NULL,
		rank        INT         NOT NULL,
		ticker      TEXT        NOT NULL,
		rs_score    DOUBLE PRECISION NOT NULL,
		percentile  INT         NOT NULL,
		sector      TEXT        NOT NULL DEFAULT '',
		industry    TEXT        NOT NULL DEFAULT '',
		snapshot    JSONB       NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (as_of, variant, ticker)
	)`,
}

// EnsureSchema creates the schemas and tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
