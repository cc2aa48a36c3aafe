package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rsscreen/internal/brain"
	"github.com/wonny/rsscreen/internal/contracts"
)

// screenCmd runs one full screening pass
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "RS 스크리닝 실행",
	Long: `Universe 구성 → 가격 로딩 → RS 점수 → 백분위 → 지표 → 조건 필터를
한 번 실행하고 variant별 관심종목을 저장/출력합니다.

Example:
  go run ./cmd/screener screen
  go run ./cmd/screener screen --date 2024-07-01 --variant breakout
  go run ./cmd/screener screen --dry-run --no-export`,
	RunE: runScreen,
}

var (
	screenDate     string
	screenVariants []string
	screenDryRun   bool
	screenNoExport bool
	screenOutput   string
	screenTop      int
)

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringVar(&screenDate, "date", "", "기준일 YYYY-MM-DD (default: 오늘, 스케줄 타임존)")
	screenCmd.Flags().StringSliceVar(&screenVariants, "variant", nil, "실행할 variant (반복 가능, default: 전체)")
	screenCmd.Flags().BoolVar(&screenDryRun, "dry-run", false, "DB 저장 생략")
	screenCmd.Flags().BoolVar(&screenNoExport, "no-export", false, "CSV/TXT/JSON 파일 생략")
	screenCmd.Flags().StringVar(&screenOutput, "output", "", "출력 디렉토리 (default: $SCREEN_OUTPUT_DIR)")
	screenCmd.Flags().IntVar(&screenTop, "top", 20, "콘솔에 표시할 종목 수 (0 = 전체)")
}

func runScreen(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	loc, err := a.location()
	if err != nil {
		return err
	}
	asOf, err := parseDate(screenDate, loc)
	if err != nil {
		return err
	}

	o, err := a.orchestrator(screenOutput)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := o.Run(ctx, brain.RunConfig{
		Date:     asOf,
		Variants: screenVariants,
		Export:   !screenNoExport,
		DryRun:   screenDryRun || a.db == nil,
	})
	if err != nil {
		return err
	}

	printRunResult(result, screenTop)
	return nil
}

// parseDate reads YYYY-MM-DD; empty means today's calendar date in loc
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", raw)
	}
	return contracts.DateOf(d), nil
}
