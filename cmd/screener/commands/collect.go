package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/rsscreen/internal/s0_data"
	"github.com/wonny/rsscreen/internal/s0_data/collector"
)

// collectCmd copies Yahoo bars for the universe into PostgreSQL
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "가격 데이터 수집 (Yahoo → PostgreSQL)",
	Long: `Universe 종목과 벤치마크의 일봉을 Yahoo Finance에서 받아
data.daily_prices에 저장합니다. data.provider=database 운용 시 사용.

Example:
  go run ./cmd/screener collect
  go run ./cmd/screener collect --days 400 --date 2024-07-01`,
	RunE: runCollect,
}

var (
	collectDays int
	collectDate string
)

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().IntVar(&collectDays, "days", 0, "수집 기간 (달력일, default: data.history_days)")
	collectCmd.Flags().StringVar(&collectDate, "date", "", "수집 종료일 YYYY-MM-DD (default: 오늘)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	loc, err := a.location()
	if err != nil {
		return err
	}
	to, err := parseDate(collectDate, loc)
	if err != nil {
		return err
	}
	days := collectDays
	if days <= 0 {
		days = a.strategy.Data.HistoryDays
	}
	from := to.AddDate(0, 0, -days)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := s0_data.NewPriceRepository(a.db.Pool, a.strategy.Benchmark.Ticker)
	col := collector.NewCollector(a.yahooClient(), repo, a.log)

	PrintDoubleSeparator()
	fmt.Printf("  Collect %s ~ %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	PrintDoubleSeparator()

	if _, err := col.CollectBenchmark(ctx, from, to); err != nil {
		return fmt.Errorf("collect benchmark: %w", err)
	}

	universe, err := a.universeBuilder().Build(ctx, to)
	if err != nil {
		return fmt.Errorf("build universe: %w", err)
	}

	results, err := col.CollectAll(ctx, universe.Tickers(), from, to, collector.Config{Workers: a.cfg.Screen.Workers})
	if err != nil {
		return err
	}

	success, failed := collector.Summary(results)
	PrintSuccess(fmt.Sprintf("%d tickers collected", success))
	if failed > 0 {
		PrintWarning(fmt.Sprintf("%d tickers failed", failed))
	}
	return nil
}
