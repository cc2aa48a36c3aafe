package s0_data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
)

// csvColumns is the long-format header (one row per ticker per day)
var csvColumns = []string{"ticker", "date", "open", "high", "low", "close", "volume"}

// CSVSource serves series from a long-format CSV file loaded once into memory
type CSVSource struct {
	benchmark string
	series    map[string]contracts.Series
}

// NewCSVSource loads a long-format CSV file
func NewCSVSource(path, benchmark string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	return ReadCSVSource(f, benchmark)
}

// ReadCSVSource parses long-format rows: ticker,date,open,high,low,close,volume
func ReadCSVSource(r io.Reader, benchmark string) (*CSVSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	raw := make(map[string][]contracts.Bar)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		ticker := strings.ToUpper(strings.TrimSpace(record[index["ticker"]]))
		bar, err := parseBar(record, index)
		if err != nil {
			return nil, fmt.Errorf("csv line %d (%s): %w", line, ticker, err)
		}
		raw[ticker] = append(raw[ticker], bar)
	}

	src := &CSVSource{
		benchmark: strings.ToUpper(benchmark),
		series:    make(map[string]contracts.Series, len(raw)),
	}
	for ticker, bars := range raw {
		s, err := contracts.NewSeries(ticker, bars)
		if err != nil {
			return nil, err
		}
		src.series[ticker] = s
	}
	return src, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", col)
		}
	}
	return index, nil
}

func parseBar(record []string, index map[string]int) (contracts.Bar, error) {
	var b contracts.Bar

	date, err := time.Parse("2006-01-02", strings.TrimSpace(record[index["date"]]))
	if err != nil {
		return b, fmt.Errorf("invalid date: %w", err)
	}
	b.Date = date

	fields := []struct {
		col string
		dst *float64
	}{
		{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[index[f.col]]), 64)
		if err != nil {
			return b, fmt.Errorf("invalid %s: %w", f.col, err)
		}
		*f.dst = v
	}

	// 거래량이 "1.2e6" 형태로 저장된 파일도 허용
	vol, err := strconv.ParseFloat(strings.TrimSpace(record[index["volume"]]), 64)
	if err != nil {
		return b, fmt.Errorf("invalid volume: %w", err)
	}
	b.Volume = int64(vol)

	return b, nil
}

// Tickers returns every ticker in the file except the benchmark
func (s *CSVSource) Tickers() []string {
	out := make([]string, 0, len(s.series))
	for t := range s.series {
		if t != s.benchmark {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// GetSeries returns bars for a ticker within [from, to]
func (s *CSVSource) GetSeries(_ context.Context, ticker string, from, to time.Time) (contracts.Series, error) {
	series, ok := s.series[strings.ToUpper(ticker)]
	if !ok {
		return contracts.Series{}, fmt.Errorf("%s: not in csv: %w", ticker, contracts.ErrSeriesNotFound)
	}

	from, to = contracts.DateOf(from), contracts.DateOf(to)
	start := sort.Search(series.Len(), func(i int) bool {
		return !series.Bars[i].Date.Before(from)
	})
	window := series.UpTo(to)
	if start >= window.Len() {
		return contracts.Series{}, fmt.Errorf("%s: no bars in range: %w", ticker, contracts.ErrSeriesNotFound)
	}

	bars := make([]contracts.Bar, window.Len()-start)
	copy(bars, window.Bars[start:])
	return contracts.Series{Ticker: series.Ticker, Bars: bars}, nil
}

// GetBenchmarkSeries returns the benchmark bars within [from, to]
func (s *CSVSource) GetBenchmarkSeries(ctx context.Context, from, to time.Time) (contracts.Series, error) {
	return s.GetSeries(ctx, s.benchmark, from, to)
}
