package s0_data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/database"
)

func TestPriceRepository_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, (&database.DB{Pool: pool}).EnsureSchema(ctx))

	ticker := "ZZTEST" + time.Now().Format("150405")
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM data.daily_prices WHERE ticker = $1", ticker)
	})

	repo := NewPriceRepository(pool, "SPY")
	series, err := contracts.NewSeries(ticker, []contracts.Bar{
		{Date: testFrom, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000},
		{Date: testFrom.AddDate(0, 0, 1), Open: 10.5, High: 12, Low: 10, Close: 11.25, Volume: 1200},
	})
	require.NoError(t, err)

	require.NoError(t, repo.SaveSeries(ctx, series))
	// upsert 재실행
	require.NoError(t, repo.SaveSeries(ctx, series))

	got, err := repo.GetSeries(ctx, ticker, testFrom, testTo)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, 11.25, got.Bars[1].Close)

	latest, ok, err := repo.LatestDate(ctx, ticker)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, latest.Equal(testFrom.AddDate(0, 0, 1)))

	active, err := repo.ActiveTickers(ctx, testFrom)
	require.NoError(t, err)
	assert.Contains(t, active, ticker)

	_, err = repo.GetSeries(ctx, ticker+"X", testFrom, testTo)
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
}
