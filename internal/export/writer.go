package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/selection"
)

// Decimals is the rounding applied to every float column
const Decimals = 3

// metadata columns resolved from the entry rather than the indicator snapshot
const (
	ColumnSector   = "sector"
	ColumnIndustry = "industry"
)

// BaseHeader always leads the CSV
var BaseHeader = []string{"ticker", "rs_score", "percentile"}

// Paths lists files written by WriteFiles
type Paths struct {
	CSV     string
	Tickers string
	Result  string
}

// WriteCSV writes the watchlist in rank order.
// Missing indicator values are written as empty cells.
func WriteCSV(w io.Writer, wl *contracts.Watchlist, columns []string) error {
	writer := csv.NewWriter(w)

	header := append(append([]string(nil), BaseHeader...), columns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range wl.Entries {
		record := make([]string, 0, len(header))
		record = append(record, e.Ticker, formatFloat(e.RawScore), strconv.Itoa(e.Percentile))
		for _, col := range columns {
			record = append(record, cell(e, col))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteTickers writes one ticker per line (TradingView/broker import)
func WriteTickers(w io.Writer, wl *contracts.Watchlist) error {
	bw := bufio.NewWriter(w)
	for _, t := range wl.Tickers() {
		if _, err := fmt.Fprintln(bw, t); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteResultJSON writes the full run result (scores, rejections, stage counts)
func WriteResultJSON(w io.Writer, result *selection.RunResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteFiles writes <variant>_<date>.csv, .txt and .json into dir
func WriteFiles(dir string, result *selection.RunResult, columns []string) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create output dir: %w", err)
	}

	base := fmt.Sprintf("%s_%s", result.Variant, result.AsOf.Format("20060102"))
	paths := Paths{
		CSV:     filepath.Join(dir, base+".csv"),
		Tickers: filepath.Join(dir, base+".txt"),
		Result:  filepath.Join(dir, base+".json"),
	}

	if err := writeFile(paths.CSV, func(w io.Writer) error {
		return WriteCSV(w, &result.Watchlist, columns)
	}); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.Tickers, func(w io.Writer) error {
		return WriteTickers(w, &result.Watchlist)
	}); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.Result, func(w io.Writer) error {
		return WriteResultJSON(w, result)
	}); err != nil {
		return Paths{}, err
	}

	return paths, nil
}

// writeFile writes via a temp file and rename so readers never see a partial file
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func cell(e contracts.WatchlistEntry, col string) string {
	switch col {
	case ColumnSector:
		return e.Sector
	case ColumnIndustry:
		return e.Industry
	}
	v, ok := e.Snapshot.Get(col)
	if !ok {
		return ""
	}
	return formatFloat(v)
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).Round(Decimals).StringFixed(Decimals)
}
