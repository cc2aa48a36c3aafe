package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rsscreen/internal/s0_data/collector"
	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/pkg/logger"
)

// DefaultCollectSchedule 평일 17:00 (스크리닝 30분 전)
const DefaultCollectSchedule = "0 17 * * 1-5"

// DataCollectionJob copies recent bars for the universe into PostgreSQL
// ⭐ SSOT: 데이터 수집 스케줄은 이 Job에서만
type DataCollectionJob struct {
	collector *collector.Collector
	universe  *s1_universe.Builder
	schedule  string
	lookback  int // 수집 기간 (달력일)
	workers   int
	logger    *logger.Logger
}

// NewDataCollectionJob creates a new data collection job
func NewDataCollectionJob(col *collector.Collector, universe *s1_universe.Builder, schedule string, workers int, log *logger.Logger) *DataCollectionJob {
	if schedule == "" {
		schedule = DefaultCollectSchedule
	}
	return &DataCollectionJob{
		collector: col,
		universe:  universe,
		schedule:  schedule,
		lookback:  5,
		workers:   workers,
		logger:    log,
	}
}

// Name returns the job name
func (j *DataCollectionJob) Name() string {
	return "daily_collect"
}

// Schedule returns the cron schedule
func (j *DataCollectionJob) Schedule() string {
	return j.schedule
}

// Run executes the data collection
func (j *DataCollectionJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled data collection")

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -j.lookback)

	// 1. Benchmark (실패 시 중단)
	if _, err := j.collector.CollectBenchmark(ctx, from, to); err != nil {
		return err
	}

	// 2. Universe
	universe, err := j.universe.Build(ctx, to)
	if err != nil {
		return fmt.Errorf("build universe: %w", err)
	}

	// 3. Prices
	results, err := j.collector.CollectAll(ctx, universe.Tickers(), from, to, collector.Config{Workers: j.workers})
	if err != nil {
		return fmt.Errorf("collect prices: %w", err)
	}

	success, failed := collector.Summary(results)
	j.logger.WithFields(map[string]interface{}{
		"success": success,
		"failed":  failed,
	}).Info("Scheduled data collection completed")
	return nil
}
