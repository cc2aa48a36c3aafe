package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "RS 스크리너 - 상대강도 기반 미국 주식 스크리닝",
	Long: `RS Screener CLI

벤치마크 대비 상대강도(RS) 점수를 계산하고 백분위 순위와
기술적 지표 조건으로 관심종목을 선별합니다.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener screen --date 2024-07-01
  go run ./cmd/screener screen --variant breakout --dry-run
  go run ./cmd/screener collect --days 400
  go run ./cmd/screener config validate
  go run ./cmd/screener scheduler start
  go run ./cmd/screener api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "config", "", "strategy config file (default $SCREEN_CONFIG or config/screen.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
