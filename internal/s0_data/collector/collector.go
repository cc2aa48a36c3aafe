package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
)

// Collector copies daily bars from an external provider into storage
// ⭐ SSOT: 데이터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	source contracts.SeriesProvider
	writer contracts.SeriesWriter
	logger *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers int // Number of concurrent workers
}

// NewCollector creates a new Collector instance
func NewCollector(source contracts.SeriesProvider, writer contracts.SeriesWriter, log *logger.Logger) *Collector {
	return &Collector{
		source: source,
		writer: writer,
		logger: log.WithField("module", "collector"),
	}
}

// FetchResult represents the result of a fetch operation
type FetchResult struct {
	Ticker   string
	BarCount int
	Error    error
}

// Summary counts successes and failures
func Summary(results []FetchResult) (success, failed int) {
	for _, r := range results {
		if r.Error != nil {
			failed++
		} else {
			success++
		}
	}
	return success, failed
}

// CollectBenchmark fetches and stores the benchmark series
func (c *Collector) CollectBenchmark(ctx context.Context, from, to time.Time) (FetchResult, error) {
	series, err := c.source.GetBenchmarkSeries(ctx, from, to)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch benchmark: %w", err)
	}
	if err := c.writer.SaveSeries(ctx, series); err != nil {
		return FetchResult{}, fmt.Errorf("save benchmark: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": series.Ticker,
		"count":  series.Len(),
	}).Info("Benchmark collected")

	return FetchResult{Ticker: series.Ticker, BarCount: series.Len()}, nil
}

// CollectAll fetches price data for every ticker
func (c *Collector) CollectAll(ctx context.Context, tickers []string, from, to time.Time, cfg Config) ([]FetchResult, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker_count": len(tickers),
		"from":         from.Format("2006-01-02"),
		"to":           to.Format("2006-01-02"),
		"workers":      cfg.Workers,
	}).Info("Starting price collection")

	// Create worker pool
	results := make([]FetchResult, 0, len(tickers))
	resultCh := make(chan FetchResult, len(tickers))

	var wg sync.WaitGroup
	tickerCh := make(chan string, len(tickers))

	// Start workers
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.priceWorker(ctx, workerID, tickerCh, resultCh, from, to)
		}(i)
	}

	// Send tickers to workers
	for _, t := range tickers {
		tickerCh <- t
	}
	close(tickerCh)

	// Wait for all workers to complete
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Collect results
	for result := range resultCh {
		results = append(results, result)
	}

	success, failed := Summary(results)
	c.logger.WithFields(map[string]interface{}{
		"success": success,
		"failed":  failed,
		"total":   len(results),
	}).Info("Price collection completed")

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("collection cancelled: %w", err)
	}
	return results, nil
}

// priceWorker processes price fetching for tickers
func (c *Collector) priceWorker(ctx context.Context, workerID int, tickerCh <-chan string, resultCh chan<- FetchResult, from, to time.Time) {
	for ticker := range tickerCh {
		select {
		case <-ctx.Done():
			resultCh <- FetchResult{
				Ticker: ticker,
				Error:  ctx.Err(),
			}
			continue
		default:
		}

		series, err := c.source.GetSeries(ctx, ticker, from, to)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"ticker": ticker,
			}).Error("Failed to fetch prices")
			resultCh <- FetchResult{
				Ticker: ticker,
				Error:  err,
			}
			continue
		}

		// Save to database
		if err := c.writer.SaveSeries(ctx, series); err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"ticker": ticker,
			}).Error("Failed to save prices")
			resultCh <- FetchResult{
				Ticker:   ticker,
				BarCount: series.Len(),
				Error:    err,
			}
			continue
		}

		c.logger.WithFields(map[string]interface{}{
			"worker": workerID,
			"ticker": ticker,
			"count":  series.Len(),
		}).Debug("Fetched prices")

		resultCh <- FetchResult{
			Ticker:   ticker,
			BarCount: series.Len(),
		}
	}
}
