package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/selection"
)

func sampleWatchlist() contracts.Watchlist {
	return contracts.Watchlist{
		AsOf:    time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		Variant: "breakout",
		Entries: []contracts.WatchlistEntry{
			{
				Ticker: "NVDA", RawScore: 2.34567, Percentile: 99, Sector: "Information Technology",
				Snapshot: contracts.IndicatorSnapshot{Values: map[string]float64{"close": 123.4, "atr_pct": 3.14159}},
			},
			{
				Ticker: "XOM", RawScore: 1.0005, Percentile: 91, Sector: "Energy",
				Snapshot: contracts.IndicatorSnapshot{Values: map[string]float64{"close": 110}},
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	wl := sampleWatchlist()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &wl, []string{"sector", "close", "atr_pct"}))

	want := "ticker,rs_score,percentile,sector,close,atr_pct\n" +
		"NVDA,2.346,99,Information Technology,123.400,3.142\n" +
		"XOM,1.001,91,Energy,110.000,\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_Deterministic(t *testing.T) {
	wl := sampleWatchlist()

	var a, b bytes.Buffer
	require.NoError(t, WriteCSV(&a, &wl, []string{"close"}))
	require.NoError(t, WriteCSV(&b, &wl, []string{"close"}))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &contracts.Watchlist{}, nil))
	assert.Equal(t, "ticker,rs_score,percentile\n", buf.String())
}

func TestWriteTickers(t *testing.T) {
	wl := sampleWatchlist()

	var buf bytes.Buffer
	require.NoError(t, WriteTickers(&buf, &wl))
	assert.Equal(t, "NVDA\nXOM\n", buf.String())
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	wl := sampleWatchlist()
	result := &selection.RunResult{
		AsOf:          wl.AsOf,
		Variant:       wl.Variant,
		Watchlist:     wl,
		FailedTickers: map[string]string{"DEAD": "data unavailable"},
	}

	paths, err := WriteFiles(dir, result, []string{"close"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "breakout_20240628.csv"), paths.CSV)

	txt, err := os.ReadFile(paths.Tickers)
	require.NoError(t, err)
	assert.Equal(t, "NVDA\nXOM\n", string(txt))

	raw, err := os.ReadFile(paths.Result)
	require.NoError(t, err)
	var decoded selection.RunResult
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "data unavailable", decoded.FailedTickers["DEAD"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "temp files must be cleaned up")
}
