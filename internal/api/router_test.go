package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/api/handlers"
	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/internal/selection"
	"github.com/wonny/rsscreen/internal/strategyconfig"
	"github.com/wonny/rsscreen/pkg/database"
	"github.com/wonny/rsscreen/pkg/logger"
)

var day = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

type memStore struct {
	lists map[string]map[time.Time]*contracts.Watchlist
	err   error
}

func (m *memStore) LatestWatchlist(_ context.Context, variant string) (*contracts.Watchlist, error) {
	if m.err != nil {
		return nil, m.err
	}
	var latest *contracts.Watchlist
	for d, wl := range m.lists[variant] {
		if latest == nil || d.After(latest.AsOf) {
			latest = wl
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("variant %s: %w", variant, selection.ErrWatchlistNotFound)
	}
	return latest, nil
}

func (m *memStore) WatchlistByDate(_ context.Context, variant string, asOf time.Time) (*contracts.Watchlist, error) {
	if wl, ok := m.lists[variant][asOf]; ok {
		return wl, nil
	}
	return nil, selection.ErrWatchlistNotFound
}

func (m *memStore) ListDates(_ context.Context, variant string, limit int) ([]time.Time, error) {
	out := []time.Time{}
	for d := range m.lists[variant] {
		out = append(out, d)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memUniverse struct {
	u *contracts.Universe
}

func (m memUniverse) GetLatestUniverse(context.Context) (*contracts.Universe, error) {
	if m.u == nil {
		return nil, s1_universe.ErrNoSnapshot
	}
	return m.u, nil
}

func newTestRouter(t *testing.T, store *memStore, universe *contracts.Universe) http.Handler {
	t.Helper()
	strategy, _, err := strategyconfig.Load("../../config/screen.yaml")
	require.NoError(t, err)

	log := logger.NewNop()
	return NewRouter(Handlers{
		Watchlist: handlers.NewWatchlistHandler(store, []string{"breakout", "bounce"}, log),
		Data:      handlers.NewDataHandler(memUniverse{u: universe}, strategy, log),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "# metrics")
		}),
	}, log)
}

func sampleStore() *memStore {
	wl := &contracts.Watchlist{
		AsOf:    day,
		Variant: "breakout",
		Entries: []contracts.WatchlistEntry{
			{Ticker: "NVDA", RawScore: 2.1, Percentile: 99},
			{Ticker: "AAPL", RawScore: 1.4, Percentile: 91},
		},
	}
	return &memStore{lists: map[string]map[time.Time]*contracts.Watchlist{
		"breakout": {day: wl},
	}}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, sampleStore(), nil)

	rec := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

type downDB struct{}

func (downDB) HealthCheck(context.Context) (*database.HealthStatus, error) {
	return &database.HealthStatus{Error: "dial tcp: connection refused"}, errors.New("connection refused")
}

func TestRouter_HealthDegraded(t *testing.T) {
	r := NewRouter(Handlers{
		Watchlist: handlers.NewWatchlistHandler(sampleStore(), []string{"breakout"}, logger.NewNop()),
		Database:  downDB{},
	}, logger.NewNop())

	rec := get(t, r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)

	// Data 핸들러 없으면 라우트 없음
	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/config").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/metrics").Code)
}

func TestRouter_WatchlistLatest(t *testing.T) {
	r := newTestRouter(t, sampleStore(), nil)

	// variant 생략 시 첫 번째 variant
	rec := get(t, r, "/api/watchlist/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.WatchlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, []string{"NVDA", "AAPL"}, body.Data.Tickers())

	rec = get(t, r, "/api/watchlist/latest?variant=bounce")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, r, "/api/watchlist/latest?variant=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_WatchlistByDate(t *testing.T) {
	r := newTestRouter(t, sampleStore(), nil)

	rec := get(t, r, "/api/watchlist/2024-07-01?variant=breakout")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, r, "/api/watchlist/2024-07-02?variant=breakout")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, r, "/api/watchlist/2024-13-45")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_WatchlistDates(t *testing.T) {
	r := newTestRouter(t, sampleStore(), nil)

	rec := get(t, r, "/api/watchlist/dates?variant=breakout")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"2024-07-01"`)

	rec = get(t, r, "/api/watchlist/dates?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_StoreFailure(t *testing.T) {
	store := sampleStore()
	store.err = errors.New("connection refused")
	r := newTestRouter(t, store, nil)

	rec := get(t, r, "/api/watchlist/latest")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRouter_Universe(t *testing.T) {
	r := newTestRouter(t, sampleStore(), nil)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/universe/latest").Code)

	u := &contracts.Universe{
		Date:       day,
		Securities: []contracts.Security{{Ticker: "AAPL"}, {Ticker: "NVDA"}},
	}
	r = newTestRouter(t, sampleStore(), u)
	rec := get(t, r, "/api/universe/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestRouter_Config(t *testing.T) {
	r := newTestRouter(t, sampleStore(), nil)

	rec := get(t, r, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["config_hash"], 64)
	assert.NotEmpty(t, body["variants"])
}
