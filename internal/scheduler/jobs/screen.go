package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rsscreen/internal/brain"
	"github.com/wonny/rsscreen/pkg/logger"
)

// DefaultScreenSchedule 평일 17:30 (미국 장 마감 후)
const DefaultScreenSchedule = "30 17 * * 1-5"

// Runner executes one screening run (brain.Orchestrator)
type Runner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// ScreenJob runs the screening pipeline after the close
// ⭐ SSOT: 정기 스크리닝 스케줄은 이 Job에서만
type ScreenJob struct {
	runner   Runner
	schedule string
	variants []string
	location *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewScreenJob creates a new screening job (empty schedule = DefaultScreenSchedule)
func NewScreenJob(runner Runner, schedule string, variants []string, loc *time.Location, log *logger.Logger) *ScreenJob {
	if schedule == "" {
		schedule = DefaultScreenSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	return &ScreenJob{
		runner:   runner,
		schedule: schedule,
		variants: variants,
		location: loc,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *ScreenJob) Name() string {
	return "daily_screen"
}

// Schedule returns the cron schedule
func (j *ScreenJob) Schedule() string {
	return j.schedule
}

// Run screens as of today's date in the exchange timezone
func (j *ScreenJob) Run(ctx context.Context) error {
	local := j.now().In(j.location)
	asOf := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	j.logger.WithField("as_of", asOf.Format("2006-01-02")).Info("Starting scheduled screening")

	result, err := j.runner.Run(ctx, brain.RunConfig{
		Date:     asOf,
		Variants: j.variants,
		Export:   true,
	})
	if err != nil {
		return fmt.Errorf("screening run: %w", err)
	}

	for _, v := range result.Variants {
		j.logger.WithFields(map[string]interface{}{
			"variant":   v.Variant,
			"watchlist": v.Watchlist.Count(),
		}).Info("Scheduled screening variant done")
	}
	return nil
}
