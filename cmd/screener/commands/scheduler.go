package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rsscreen/internal/s0_data"
	"github.com/wonny/rsscreen/internal/s0_data/collector"
	"github.com/wonny/rsscreen/internal/scheduler"
	"github.com/wonny/rsscreen/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `정기 스크리닝 스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업과 다음 실행 시각
  run     - 특정 작업 즉시 실행 (동기)

Example:
  go run ./cmd/screener scheduler start
  go run ./cmd/screener scheduler list
  go run ./cmd/screener scheduler run daily_screen`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- daily_collect: 평일 17:00 (DATABASE_URL 설정 시, 가격 수집)
- daily_screen: schedule.cron (default 평일 17:30, 스크리닝 + 파일 출력)

METRICS_ENABLED=true 이면 METRICS_PORT에서 /metrics 노출.
스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.MetricsEnabled {
		srv := &http.Server{
			Addr:              ":" + a.cfg.MetricsPort,
			Handler:           a.metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("Metrics server stopped")
			}
		}()
		defer srv.Close()
		a.log.WithField("port", a.cfg.MetricsPort).Info("Serving metrics")
	}

	sched.Start()

	PrintSuccess("Scheduler started")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobNow(ctx, jobName)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s completed in %s (%d attempts)", jobName, result.Duration.Round(time.Millisecond), result.Attempts))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	fmt.Println("\nRegistered jobs:")
	widths := []int{16, 16, 25}
	PrintTableHeader([]string{"JOB", "SCHEDULE", "NEXT RUN"}, widths)
	for _, name := range sched.JobNames() {
		stats, err := sched.Stats(name)
		if err != nil {
			continue
		}
		next := "-"
		if t, err := sched.NextRun(name); err == nil {
			next = t.Format("2006-01-02 15:04 MST")
		}
		PrintTableRow([]string{name, stats.Schedule, next}, widths)
	}
}

// initScheduler registers the daily jobs in the configured timezone
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	loc, err := a.location()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.log, loc).WithObserver(a.metrics)

	// 가격 수집은 DB 저장소가 있을 때만
	if a.db != nil {
		repo := s0_data.NewPriceRepository(a.db.Pool, a.strategy.Benchmark.Ticker)
		col := collector.NewCollector(a.yahooClient(), repo, a.log)
		job := jobs.NewDataCollectionJob(col, a.universeBuilder(), "", a.cfg.Screen.Workers, a.log)
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	o, err := a.orchestrator("")
	if err != nil {
		return nil, err
	}
	screen := jobs.NewScreenJob(o, a.strategy.Schedule.Cron, a.strategy.Schedule.Variants, loc, a.log)
	if err := sched.AddJob(screen); err != nil {
		return nil, err
	}

	return sched, nil
}
