package contracts

import (
	"sort"
	"time"
)

// WatchlistEntry is one ticker that passed every screening stage
type WatchlistEntry struct {
	Ticker     string            `json:"ticker"`
	RawScore   float64           `json:"rs_score"`
	Percentile int               `json:"percentile"`
	Sector     string            `json:"sector,omitempty"`
	Industry   string            `json:"industry,omitempty"`
	Snapshot   IndicatorSnapshot `json:"snapshot"`
}

// Watchlist is the terminal output of a screening run
// ⭐ SSOT: 최종 관심종목 (RS 내림차순, 티커 오름차순)
type Watchlist struct {
	AsOf       time.Time        `json:"as_of"`
	Variant    string           `json:"variant"`
	ConfigHash string           `json:"config_hash"`
	Entries    []WatchlistEntry `json:"entries"`
}

// SortEntries orders entries by raw score descending, ticker ascending
func SortEntries(entries []WatchlistEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RawScore != entries[j].RawScore {
			return entries[i].RawScore > entries[j].RawScore
		}
		return entries[i].Ticker < entries[j].Ticker
	})
}

// Tickers returns the ordered ticker symbols
func (w *Watchlist) Tickers() []string {
	out := make([]string, len(w.Entries))
	for i, e := range w.Entries {
		out[i] = e.Ticker
	}
	return out
}

// Count returns the number of entries
func (w *Watchlist) Count() int {
	return len(w.Entries)
}
