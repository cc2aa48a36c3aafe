package contracts

import (
	"sort"
	"time"
)

// Security describes one universe member
type Security struct {
	Ticker   string `json:"ticker"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Universe string `json:"universe"`
}

// Universe represents the tickers to be screened in one run
// ⭐ SSOT: 유니버스 → 파이프라인 전달
type Universe struct {
	Date       time.Time         `json:"date"`
	Securities []Security        `json:"securities"` // 티커 오름차순
	Excluded   map[string]string `json:"excluded"`   // 제외 종목: 사유
}

// Tickers returns the ordered ticker list
func (u *Universe) Tickers() []string {
	out := make([]string, len(u.Securities))
	for i, s := range u.Securities {
		out[i] = s.Ticker
	}
	return out
}

// Lookup returns the security metadata for a ticker.
// Securities must be sorted by ticker (s1_universe guarantees this).
func (u *Universe) Lookup(ticker string) (Security, bool) {
	i := sort.Search(len(u.Securities), func(i int) bool {
		return u.Securities[i].Ticker >= ticker
	})
	if i < len(u.Securities) && u.Securities[i].Ticker == ticker {
		return u.Securities[i], true
	}
	return Security{}, false
}

// Contains checks if a ticker is in the universe
func (u *Universe) Contains(ticker string) bool {
	_, ok := u.Lookup(ticker)
	return ok
}

// Count returns the number of securities
func (u *Universe) Count() int {
	return len(u.Securities)
}
