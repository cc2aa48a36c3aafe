package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
)

type stubSource struct{}

func (stubSource) GetSeries(_ context.Context, ticker string, from, _ time.Time) (contracts.Series, error) {
	if ticker == "DEAD" {
		return contracts.Series{}, contracts.ErrDataUnavailable
	}
	return contracts.NewSeries(ticker, []contracts.Bar{{Date: from, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}})
}

func (s stubSource) GetBenchmarkSeries(ctx context.Context, from, to time.Time) (contracts.Series, error) {
	return s.GetSeries(ctx, "SPY", from, to)
}

type memWriter struct {
	mu    sync.Mutex
	saved map[string]int
	fail  string
}

func (w *memWriter) SaveSeries(_ context.Context, s contracts.Series) error {
	if s.Ticker == w.fail {
		return errors.New("disk full")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.saved[s.Ticker] = s.Len()
	return nil
}

func TestCollector_CollectAll(t *testing.T) {
	writer := &memWriter{saved: make(map[string]int), fail: "MSFT"}
	c := NewCollector(stubSource{}, writer, logger.NewNop())

	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	results, err := c.CollectAll(context.Background(), []string{"AAPL", "DEAD", "MSFT", "NVDA"}, from, from, Config{Workers: 2})
	require.NoError(t, err)
	require.Len(t, results, 4)

	success, failed := Summary(results)
	assert.Equal(t, 2, success)
	assert.Equal(t, 2, failed)
	assert.Equal(t, map[string]int{"AAPL": 1, "NVDA": 1}, writer.saved)

	bench, err := c.CollectBenchmark(context.Background(), from, from)
	require.NoError(t, err)
	assert.Equal(t, "SPY", bench.Ticker)
	assert.Equal(t, 1, writer.saved["SPY"])
}
