package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rsscreen/internal/contracts"
)

// PriceRepository implements contracts.SeriesProvider and contracts.SeriesWriter
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool      *pgxpool.Pool
	benchmark string
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool, benchmark string) *PriceRepository {
	return &PriceRepository{pool: pool, benchmark: benchmark}
}

// GetSeries retrieves bars for a ticker within [from, to]
func (r *PriceRepository) GetSeries(ctx context.Context, ticker string, from, to time.Time) (contracts.Series, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume
		FROM data.daily_prices
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return contracts.Series{}, fmt.Errorf("query prices %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return contracts.Series{}, fmt.Errorf("scan prices %s: %w", ticker, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return contracts.Series{}, fmt.Errorf("iterate prices %s: %w", ticker, err)
	}

	if len(bars) == 0 {
		return contracts.Series{}, fmt.Errorf("%s: no stored bars: %w", ticker, contracts.ErrSeriesNotFound)
	}

	return contracts.NewSeries(ticker, bars)
}

// GetBenchmarkSeries retrieves bars for the configured benchmark
func (r *PriceRepository) GetBenchmarkSeries(ctx context.Context, from, to time.Time) (contracts.Series, error) {
	return r.GetSeries(ctx, r.benchmark, from, to)
}

// SaveSeries upserts every bar of a series in one batch
func (r *PriceRepository) SaveSeries(ctx context.Context, series contracts.Series) error {
	if series.Len() == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_prices (ticker, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, b := range series.Bars {
		batch.Queue(query, series.Ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save prices %s: %w", series.Ticker, err)
	}
	return nil
}

// ActiveTickers returns tickers with a bar on or after since (benchmark 제외)
func (r *PriceRepository) ActiveTickers(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT ticker
		FROM data.daily_prices
		WHERE trade_date >= $1 AND ticker <> $2
		ORDER BY ticker
	`

	rows, err := r.pool.Query(ctx, query, since, r.benchmark)
	if err != nil {
		return nil, fmt.Errorf("query active tickers: %w", err)
	}

	tickers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect active tickers: %w", err)
	}
	return tickers, nil
}

// LatestDate returns the most recent stored trade date for a ticker
func (r *PriceRepository) LatestDate(ctx context.Context, ticker string) (time.Time, bool, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT MAX(trade_date) FROM data.daily_prices WHERE ticker = $1",
		ticker,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest date %s: %w", ticker, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}
