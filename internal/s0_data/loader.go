package s0_data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
)

// LoaderConfig holds loader configuration
type LoaderConfig struct {
	Workers int           // Number of concurrent workers
	Timeout time.Duration // 티커별 시도 타임아웃
	Retries int           // 실패 시 재시도 횟수 (0 = 1회 시도)
	Backoff time.Duration // 첫 재시도 대기 (지수 증가)
}

// DefaultLoaderConfig returns default loader settings
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Workers: 8,
		Timeout: 30 * time.Second,
		Retries: 3,
		Backoff: 500 * time.Millisecond,
	}
}

// FailureRecorder is notified of every ticker that could not be loaded
type FailureRecorder interface {
	FetchFailed(ticker string)
}

// LoadResult is the outcome of loading one universe
type LoadResult struct {
	Benchmark contracts.Series
	Series    []contracts.Series // 티커 오름차순
	Failed    map[string]string  // 티커: 실패 사유
}

// Loader loads a universe through a SeriesProvider
// ⭐ SSOT: 종목별 실패 격리 (한 종목 실패가 전체 실행을 중단하지 않음)
type Loader struct {
	provider contracts.SeriesProvider
	config   LoaderConfig
	recorder FailureRecorder
	logger   *logger.Logger
}

// NewLoader creates a new loader
func NewLoader(provider contracts.SeriesProvider, cfg LoaderConfig, log *logger.Logger) *Loader {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Loader{
		provider: provider,
		config:   cfg,
		logger:   log.WithField("module", "loader"),
	}
}

// WithRecorder attaches a failure recorder (metrics)
func (l *Loader) WithRecorder(r FailureRecorder) *Loader {
	l.recorder = r
	return l
}

type loadResult struct {
	ticker string
	series contracts.Series
	err    error
}

// Load fetches the benchmark once, then every ticker concurrently.
// Only a benchmark failure or cancellation of ctx is returned as an error.
func (l *Loader) Load(ctx context.Context, tickers []string, from, to time.Time) (*LoadResult, error) {
	start := time.Now()

	benchmark, err := l.fetch(ctx, "benchmark", func(ctx context.Context) (contracts.Series, error) {
		return l.provider.GetBenchmarkSeries(ctx, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrBenchmarkUnavailable, err)
	}

	l.logger.WithFields(map[string]interface{}{
		"ticker_count": len(tickers),
		"from":         from.Format("2006-01-02"),
		"to":           to.Format("2006-01-02"),
		"workers":      l.config.Workers,
	}).Info("Starting series load")

	resultCh := make(chan loadResult, len(tickers))
	tickerCh := make(chan string, len(tickers))

	var wg sync.WaitGroup
	for i := 0; i < l.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			l.worker(ctx, workerID, tickerCh, resultCh, from, to)
		}(i)
	}

	for _, t := range tickers {
		tickerCh <- t
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := &LoadResult{
		Benchmark: benchmark,
		Series:    make([]contracts.Series, 0, len(tickers)),
		Failed:    make(map[string]string),
	}
	for r := range resultCh {
		if r.err != nil {
			result.Failed[r.ticker] = r.err.Error()
			if l.recorder != nil {
				l.recorder.FetchFailed(r.ticker)
			}
			continue
		}
		result.Series = append(result.Series, r.series)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("series load cancelled: %w", err)
	}

	sort.Slice(result.Series, func(i, j int) bool {
		return result.Series[i].Ticker < result.Series[j].Ticker
	})

	l.logger.WithFields(map[string]interface{}{
		"loaded":   len(result.Series),
		"failed":   len(result.Failed),
		"duration": time.Since(start),
	}).Info("Series load completed")

	return result, nil
}

// worker processes tickers from tickerCh
func (l *Loader) worker(ctx context.Context, workerID int, tickerCh <-chan string, resultCh chan<- loadResult, from, to time.Time) {
	for ticker := range tickerCh {
		select {
		case <-ctx.Done():
			resultCh <- loadResult{ticker: ticker, err: ctx.Err()}
			continue
		default:
		}

		ticker := ticker
		series, err := l.fetch(ctx, ticker, func(ctx context.Context) (contracts.Series, error) {
			return l.provider.GetSeries(ctx, ticker, from, to)
		})
		if err != nil {
			l.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"ticker": ticker,
			}).Warn("Failed to load series")
			resultCh <- loadResult{ticker: ticker, err: err}
			continue
		}

		l.logger.WithFields(map[string]interface{}{
			"worker": workerID,
			"ticker": ticker,
			"bars":   series.Len(),
		}).Debug("Loaded series")

		resultCh <- loadResult{ticker: ticker, series: series}
	}
}

// fetch runs one provider call with per-attempt timeout and exponential backoff.
// ErrSeriesNotFound ends the loop after the first attempt.
func (l *Loader) fetch(ctx context.Context, ticker string, call func(context.Context) (contracts.Series, error)) (contracts.Series, error) {
	delay := l.config.Backoff
	var lastErr error

	for attempt := 0; attempt <= l.config.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return contracts.Series{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		series, err := l.attempt(ctx, call)
		if err == nil {
			if series.Len() == 0 {
				// 빈 시계열은 재시도해도 동일
				return contracts.Series{}, fmt.Errorf("%s: empty series: %w", ticker, contracts.ErrDataUnavailable)
			}
			return series, nil
		}
		lastErr = err

		// 상위 컨텍스트 취소는 재시도하지 않음
		if ctx.Err() != nil {
			return contracts.Series{}, ctx.Err()
		}
		// 없는 종목/상장폐지는 재시도해도 동일
		if errors.Is(err, contracts.ErrSeriesNotFound) {
			return contracts.Series{}, err
		}

		l.logger.WithFields(map[string]interface{}{
			"ticker":  ticker,
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Debug("Series fetch attempt failed")
	}

	return contracts.Series{}, fmt.Errorf("after %d attempts: %w", l.config.Retries+1, lastErr)
}

func (l *Loader) attempt(ctx context.Context, call func(context.Context) (contracts.Series, error)) (contracts.Series, error) {
	if l.config.Timeout <= 0 {
		return call(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()
	return call(attemptCtx)
}
