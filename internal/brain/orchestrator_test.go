package brain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/s0_data"
	"github.com/wonny/rsscreen/internal/s0_data/quality"
	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/internal/strategyconfig"
	"github.com/wonny/rsscreen/pkg/logger"
)

const strategyYAML = `
meta:
  strategy_id: test
benchmark:
  ticker: SPY
rs:
  lookbacks_days: [63, 126, 189, 252]
  weights: [0.4, 0.2, 0.2, 0.2]
  min_bars: 30
universe:
  source: file
  file: %s
data:
  provider: csv
  csv_path: %s
  history_days: 400
variants:
  trend:
    min_percentile: 50
    indicators:
      dollar_volume_window: 10
      atr_window: 14
      ma_windows: [10, 20, 50]
      range_window: 5
      flow_window: 20
    criteria:
      trend_predicates: ["close > ma_50"]
    export:
      columns: [sector, close, atr_pct]
`

var (
	firstDay = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	numDays  = 300
	lastDay  = firstDay.AddDate(0, 0, numDays-1)
)

// writeFixtures writes a long-format price file and a ticker file.
// A01..A06 trend up with increasing slope, SPY is flat, DOWN has no prices.
func writeFixtures(t *testing.T) (pricePath, tickerPath string) {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("ticker,date,open,high,low,close,volume\n")
	writeSeries := func(ticker string, slope float64) {
		for i := 0; i < numDays; i++ {
			c := 50 * (1 + slope*float64(i))
			fmt.Fprintf(&b, "%s,%s,%.4f,%.4f,%.4f,%.4f,100000\n",
				ticker, firstDay.AddDate(0, 0, i).Format("2006-01-02"), c, c*1.02, c*0.98, c)
		}
	}
	writeSeries("SPY", 0)
	for k := 1; k <= 6; k++ {
		writeSeries(fmt.Sprintf("A%02d", k), float64(k)*0.001)
	}

	pricePath = filepath.Join(dir, "stock_data.csv")
	require.NoError(t, os.WriteFile(pricePath, []byte(b.String()), 0o644))

	tickerPath = filepath.Join(dir, "tickers.csv")
	tickers := "ticker,sector\nA01,Energy\nA02,Energy\nA03,Utilities\nA04,Utilities\nA05,Financials\nA06,Information Technology\nDOWN,Materials\n"
	require.NoError(t, os.WriteFile(tickerPath, []byte(tickers), 0o644))
	return pricePath, tickerPath
}

type memWatchlists struct {
	mu    sync.Mutex
	saved []*contracts.Watchlist
}

func (m *memWatchlists) SaveWatchlist(_ context.Context, w *contracts.Watchlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, w)
	return nil
}

type memUniverses struct {
	saved int
}

func (m *memUniverses) SaveUniverse(context.Context, *contracts.Universe) error {
	m.saved++
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	stages int
	runs   map[string]error
}

func (r *fakeRecorder) StageCompleted(string, contracts.Stage, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages++
}

func (r *fakeRecorder) RunFinished(variant string, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[variant] = err
}

func newTestOrchestrator(t *testing.T, outputDir string) (*Orchestrator, *strategyconfig.Config) {
	t.Helper()
	pricePath, tickerPath := writeFixtures(t)

	strategy, err := strategyconfig.Parse([]byte(fmt.Sprintf(strategyYAML, tickerPath, pricePath)))
	require.NoError(t, err)

	source, err := s0_data.NewCSVSource(pricePath, strategy.Benchmark.Ticker)
	require.NoError(t, err)

	loader := s0_data.NewLoader(source, s0_data.LoaderConfig{Workers: 2, Timeout: time.Second, Retries: 0}, logger.NewNop())
	builder := s1_universe.NewBuilder(strategy.UniverseConfig(), logger.NewNop())

	o := NewOrchestrator(strategy, builder, loader, quality.NewQualityGate(quality.DefaultConfig()), 4, outputDir, logger.NewNop())
	return o, strategy
}

func TestOrchestrator_Run(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "output")
	o, _ := newTestOrchestrator(t, outputDir)

	watchlists := &memWatchlists{}
	universes := &memUniverses{}
	recorder := &fakeRecorder{runs: make(map[string]error)}
	o.WithRepositories(universes, watchlists).WithRecorder(recorder)

	result, err := o.Run(context.Background(), RunConfig{Date: lastDay, Export: true})
	require.NoError(t, err)

	assert.Equal(t, 7, result.Universe.Count())
	assert.Len(t, result.ConfigHash, 64)
	require.Len(t, result.Variants, 1)

	res := result.Variants[0]
	assert.Equal(t, "trend", res.Variant)
	assert.Contains(t, res.FailedTickers, "DOWN")

	tickers := res.Watchlist.Tickers()
	require.NotEmpty(t, tickers)
	assert.Equal(t, "A06", tickers[0])
	assert.NotContains(t, tickers, "A01")
	for _, e := range res.Watchlist.Entries {
		assert.GreaterOrEqual(t, e.Percentile, 50)
	}
	assert.Equal(t, "Information Technology", res.Watchlist.Entries[0].Sector)

	// 품질 게이트: 7개 중 1개 실패
	require.NotNil(t, result.Quality)
	assert.False(t, result.Quality.Passed)

	assert.Equal(t, 1, universes.saved)
	require.Len(t, watchlists.saved, 1)
	assert.Equal(t, tickers, watchlists.saved[0].Tickers())

	assert.NoError(t, recorder.runs["trend"])
	assert.Equal(t, len(contracts.AllStages()), recorder.stages)

	paths := result.Exports["trend"]
	csvData, err := os.ReadFile(paths.CSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csvData), "ticker,rs_score,percentile,sector,close,atr_pct\nA06,"))
}

func TestOrchestrator_DryRun(t *testing.T) {
	o, _ := newTestOrchestrator(t, t.TempDir())
	watchlists := &memWatchlists{}
	universes := &memUniverses{}
	o.WithRepositories(universes, watchlists)

	_, err := o.Run(context.Background(), RunConfig{Date: lastDay, DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, universes.saved)
	assert.Empty(t, watchlists.saved)
}

func TestOrchestrator_UnknownVariant(t *testing.T) {
	o, _ := newTestOrchestrator(t, t.TempDir())
	_, err := o.Run(context.Background(), RunConfig{Date: lastDay, Variants: []string{"bounce"}})
	assert.Error(t, err)
}

func TestOrchestrator_BenchmarkMissing(t *testing.T) {
	o, strategy := newTestOrchestrator(t, t.TempDir())
	strategy.Benchmark.Ticker = "QQQ"

	source, err := s0_data.NewCSVSource(strategy.Data.CSVPath, "QQQ")
	require.NoError(t, err)
	o.loader = s0_data.NewLoader(source, s0_data.LoaderConfig{Workers: 1, Timeout: time.Second}, logger.NewNop())

	recorder := &fakeRecorder{runs: make(map[string]error)}
	o.WithRecorder(recorder)

	_, err = o.Run(context.Background(), RunConfig{Date: lastDay})
	assert.ErrorIs(t, err, contracts.ErrBenchmarkUnavailable)
	assert.Error(t, recorder.runs["trend"])
}
