package s0_data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
)

var (
	testFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testTo   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

// fakeProvider fails a ticker failures[ticker] times before succeeding (-1 = always)
type fakeProvider struct {
	mu        sync.Mutex
	calls     map[string]int
	failures  map[string]int
	missing   map[string]bool // ErrSeriesNotFound
	benchFail bool
	delay     time.Duration
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{calls: make(map[string]int), failures: make(map[string]int), missing: make(map[string]bool)}
}

func (p *fakeProvider) GetSeries(ctx context.Context, ticker string, from, to time.Time) (contracts.Series, error) {
	p.mu.Lock()
	p.calls[ticker]++
	call := p.calls[ticker]
	fails := p.failures[ticker]
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return contracts.Series{}, ctx.Err()
		case <-time.After(p.delay):
		}
	}

	if p.missing[ticker] {
		return contracts.Series{}, fmt.Errorf("%s: %w", ticker, contracts.ErrSeriesNotFound)
	}
	if fails < 0 || call <= fails {
		return contracts.Series{}, fmt.Errorf("%s: %w", ticker, contracts.ErrDataUnavailable)
	}
	return contracts.NewSeries(ticker, []contracts.Bar{
		{Date: from, Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: to, Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
	})
}

func (p *fakeProvider) GetBenchmarkSeries(ctx context.Context, from, to time.Time) (contracts.Series, error) {
	if p.benchFail {
		return contracts.Series{}, errors.New("connection refused")
	}
	return p.GetSeries(ctx, "SPY", from, to)
}

func (p *fakeProvider) callCount(ticker string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[ticker]
}

type countingRecorder struct {
	mu     sync.Mutex
	failed []string
}

func (r *countingRecorder) FetchFailed(ticker string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, ticker)
}

func fastConfig() LoaderConfig {
	return LoaderConfig{Workers: 3, Timeout: time.Second, Retries: 2, Backoff: time.Millisecond}
}

func TestLoader_PartialFailureIsolation(t *testing.T) {
	provider := newFakeProvider()
	provider.failures["FLAKY"] = 2 // 3번째 시도 성공
	provider.failures["DEAD"] = -1

	recorder := &countingRecorder{}
	loader := NewLoader(provider, fastConfig(), logger.NewNop()).WithRecorder(recorder)

	result, err := loader.Load(context.Background(), []string{"MSFT", "DEAD", "AAPL", "FLAKY"}, testFrom, testTo)
	require.NoError(t, err)

	tickers := make([]string, len(result.Series))
	for i, s := range result.Series {
		tickers[i] = s.Ticker
	}
	assert.Equal(t, []string{"AAPL", "FLAKY", "MSFT"}, tickers)
	assert.Equal(t, "SPY", result.Benchmark.Ticker)

	require.Contains(t, result.Failed, "DEAD")
	assert.Contains(t, result.Failed["DEAD"], "after 3 attempts")
	assert.Equal(t, []string{"DEAD"}, recorder.failed)

	assert.Equal(t, 3, provider.callCount("FLAKY"))
	assert.Equal(t, 3, provider.callCount("DEAD"))
	assert.Equal(t, 1, provider.callCount("AAPL"))
}

func TestLoader_NotFoundIsNotRetried(t *testing.T) {
	provider := newFakeProvider()
	provider.missing["GONE"] = true

	cfg := fastConfig()
	cfg.Backoff = time.Second // 재시도하면 테스트가 느려짐
	loader := NewLoader(provider, cfg, logger.NewNop())

	start := time.Now()
	result, err := loader.Load(context.Background(), []string{"AAPL", "GONE"}, testFrom, testTo)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.callCount("GONE"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.Contains(t, result.Failed, "GONE")
	assert.NotContains(t, result.Failed["GONE"], "attempts")
	assert.Len(t, result.Series, 1)
}

func TestLoader_CSVMissingTickerSingleAttempt(t *testing.T) {
	src, err := ReadCSVSource(strings.NewReader(`ticker,date,open,high,low,close,volume
SPY,2024-01-02,470,472,469,471,1000
SPY,2024-02-01,480,482,479,481,1000
AAPL,2024-01-02,185,187,184,186,500
AAPL,2024-02-01,186,188,185,187,500
`), "SPY")
	require.NoError(t, err)

	cfg := fastConfig()
	cfg.Backoff = time.Second
	start := time.Now()
	result, err := NewLoader(src, cfg, logger.NewNop()).Load(context.Background(), []string{"AAPL", "GONE"}, testFrom, testTo)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Contains(t, result.Failed["GONE"], "not in csv")
	assert.Len(t, result.Series, 1)
}

func TestLoader_BenchmarkFailureIsFatal(t *testing.T) {
	provider := newFakeProvider()
	provider.benchFail = true

	loader := NewLoader(provider, fastConfig(), logger.NewNop())
	_, err := loader.Load(context.Background(), []string{"AAPL"}, testFrom, testTo)

	assert.ErrorIs(t, err, contracts.ErrBenchmarkUnavailable)
	assert.Equal(t, 0, provider.callCount("AAPL"))
}

func TestLoader_PerTickerTimeout(t *testing.T) {
	provider := newFakeProvider()
	provider.delay = 50 * time.Millisecond

	cfg := fastConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.Retries = 0

	loader := NewLoader(provider, cfg, logger.NewNop())
	_, err := loader.Load(context.Background(), []string{"AAPL"}, testFrom, testTo)

	// 벤치마크도 타임아웃
	assert.ErrorIs(t, err, contracts.ErrBenchmarkUnavailable)
}

func TestLoader_Cancelled(t *testing.T) {
	provider := newFakeProvider()
	loader := NewLoader(provider, fastConfig(), logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, []string{"AAPL", "MSFT"}, testFrom, testTo)
	assert.Error(t, err)
}
