package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDataUnavailable is returned by providers when a series cannot be obtained
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrSeriesNotFound marks a permanent miss (unknown or delisted symbol, no stored bars).
	// It wraps ErrDataUnavailable; retrying cannot succeed.
	ErrSeriesNotFound = fmt.Errorf("series not found: %w", ErrDataUnavailable)

	// ErrBenchmarkUnavailable aborts a run: nothing can be scored without it
	ErrBenchmarkUnavailable = errors.New("benchmark series unavailable")

	// ErrEmptyPopulation is returned when no ticker has a valid RS score
	ErrEmptyPopulation = errors.New("percentile population is empty")

	// ErrUnknownIndicator is returned when criteria reference an indicator the engine does not produce
	ErrUnknownIndicator = errors.New("unknown indicator")
)

// SeriesProvider supplies ordered daily bars
// ⭐ SSOT: 가격 데이터 조회 인터페이스 (Yahoo, DB, CSV, Cache 공통)
type SeriesProvider interface {
	GetSeries(ctx context.Context, ticker string, from, to time.Time) (Series, error)
	GetBenchmarkSeries(ctx context.Context, from, to time.Time) (Series, error)
}

// SeriesWriter persists bars collected from a provider
type SeriesWriter interface {
	SaveSeries(ctx context.Context, series Series) error
}
