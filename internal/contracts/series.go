package contracts

import (
	"fmt"
	"sort"
	"time"
)

// Bar represents one end-of-day OHLCV record
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is the ordered bar history of one symbol
// ⭐ SSOT: 날짜 오름차순/중복 제거는 NewSeries에서만 보장 (core는 재정렬하지 않음)
type Series struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// DateOf truncates a timestamp to its calendar day in UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewSeries normalizes raw bars at ingestion time.
// Bars are sorted by date, duplicate dates keep the last occurrence,
// and negative values are rejected.
func NewSeries(ticker string, bars []Bar) (Series, error) {
	normalized := make([]Bar, 0, len(bars))
	for i, b := range bars {
		if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 || b.Volume < 0 {
			return Series{}, fmt.Errorf("%s: negative value in bar %d (%s)", ticker, i, b.Date.Format("2006-01-02"))
		}
		b.Date = DateOf(b.Date)
		normalized = append(normalized, b)
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Date.Before(normalized[j].Date)
	})

	deduped := normalized[:0]
	for _, b := range normalized {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(b.Date) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}

	return Series{Ticker: ticker, Bars: deduped}, nil
}

// Len returns the number of bars
func (s Series) Len() int {
	return len(s.Bars)
}

// Last returns the most recent bar
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// UpTo returns the prefix of bars dated on or before asOf.
// The returned Series shares the underlying array and must be treated as read-only.
func (s Series) UpTo(asOf time.Time) Series {
	cutoff := DateOf(asOf)
	n := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Date.After(cutoff)
	})
	return Series{Ticker: s.Ticker, Bars: s.Bars[:n:n]}
}

// Closes returns close prices in bar order
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns high prices in bar order
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows returns low prices in bar order
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Volumes returns volumes in bar order as float64
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = float64(b.Volume)
	}
	return out
}
