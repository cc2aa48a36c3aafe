package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/rsscreen/internal/api"
	"github.com/wonny/rsscreen/internal/api/handlers"
	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/internal/selection"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `저장된 관심종목을 조회하는 REST API 서버를 시작합니다.
DATABASE_URL이 필요합니다.

Endpoints:
  GET /health                          - Health check
  GET /metrics                         - Prometheus metrics
  GET /api/watchlist/latest?variant=   - 최신 관심종목
  GET /api/watchlist/{date}?variant=   - 특정일 관심종목
  GET /api/watchlist/dates?variant=    - 저장된 날짜 목록
  GET /api/universe/latest             - 최신 Universe
  GET /api/config                      - variant 목록 / 설정 해시

Example:
  go run ./cmd/screener api
  go run ./cmd/screener api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	h := api.Handlers{
		Watchlist: handlers.NewWatchlistHandler(selection.NewRepository(a.db.Pool), a.strategy.VariantNames(), a.log),
		Data:      handlers.NewDataHandler(s1_universe.NewRepository(a.db.Pool), a.strategy, a.log),
		Database:  a.db,
	}
	if a.cfg.MetricsEnabled {
		h.Metrics = a.metrics.Handler()
	}

	server := api.New(a.cfg, a.log, api.NewRouter(h, a.log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}
