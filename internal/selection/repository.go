package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rsscreen/internal/contracts"
)

// ErrWatchlistNotFound is returned when no watchlist is stored for the query
var ErrWatchlistNotFound = errors.New("watchlist not found")

// Repository handles watchlist persistence
// ⭐ SSOT: Watchlist 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveWatchlist replaces the stored watchlist for (as_of, variant)
func (r *Repository) SaveWatchlist(ctx context.Context, w *contracts.Watchlist) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 같은 날짜/variant 재실행 시 전체 교체
	_, err = tx.Exec(ctx,
		"DELETE FROM selection.watchlists WHERE as_of = $1 AND variant = $2",
		w.AsOf, w.Variant,
	)
	if err != nil {
		return fmt.Errorf("failed to delete old watchlist: %w", err)
	}

	query := `
		INSERT INTO selection.watchlists (
			as_of, variant, config_hash, rank, ticker,
			rs_score, percentile, sector, industry, snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for i, e := range w.Entries {
		snapshotJSON, err := json.Marshal(e.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot for %s: %w", e.Ticker, err)
		}

		_, err = tx.Exec(ctx, query,
			w.AsOf, w.Variant, w.ConfigHash, i+1, e.Ticker,
			e.RawScore, e.Percentile, e.Sector, e.Industry, snapshotJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert watchlist entry %s: %w", e.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LatestWatchlist returns the most recent watchlist for a variant
func (r *Repository) LatestWatchlist(ctx context.Context, variant string) (*contracts.Watchlist, error) {
	var asOf *time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT MAX(as_of) FROM selection.watchlists WHERE variant = $1",
		variant,
	).Scan(&asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest watchlist date: %w", err)
	}
	if asOf == nil {
		return nil, fmt.Errorf("variant %s: %w", variant, ErrWatchlistNotFound)
	}

	return r.WatchlistByDate(ctx, variant, *asOf)
}

// WatchlistByDate returns the watchlist stored for (variant, as_of)
func (r *Repository) WatchlistByDate(ctx context.Context, variant string, asOf time.Time) (*contracts.Watchlist, error) {
	query := `
		SELECT config_hash, ticker, rs_score, percentile, sector, industry, snapshot
		FROM selection.watchlists
		WHERE as_of = $1 AND variant = $2
		ORDER BY rank ASC
	`

	rows, err := r.pool.Query(ctx, query, asOf, variant)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	w := &contracts.Watchlist{
		AsOf:    contracts.DateOf(asOf),
		Variant: variant,
		Entries: make([]contracts.WatchlistEntry, 0),
	}

	for rows.Next() {
		var e contracts.WatchlistEntry
		var snapshotJSON []byte
		if err := rows.Scan(
			&w.ConfigHash, &e.Ticker, &e.RawScore, &e.Percentile,
			&e.Sector, &e.Industry, &snapshotJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(snapshotJSON, &e.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", e.Ticker, err)
		}
		w.Entries = append(w.Entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	// 빈 watchlist 도 정상 결과지만 행이 없으면 구분 불가
	if len(w.Entries) == 0 {
		return nil, fmt.Errorf("%s on %s: %w", variant, asOf.Format("2006-01-02"), ErrWatchlistNotFound)
	}

	return w, nil
}

// ListDates returns stored as-of dates for a variant, newest first
func (r *Repository) ListDates(ctx context.Context, variant string, limit int) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT as_of FROM selection.watchlists
		WHERE variant = $1
		ORDER BY as_of DESC
		LIMIT $2
	`, variant, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist dates: %w", err)
	}

	dates, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("failed to collect watchlist dates: %w", err)
	}
	return dates, nil
}
