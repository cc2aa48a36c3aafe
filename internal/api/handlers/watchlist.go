package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/selection"
	"github.com/wonny/rsscreen/pkg/logger"
)

const (
	defaultDatesLimit = 30
	maxDatesLimit     = 365
)

// WatchlistReader reads stored watchlists
type WatchlistReader interface {
	LatestWatchlist(ctx context.Context, variant string) (*contracts.Watchlist, error)
	WatchlistByDate(ctx context.Context, variant string, asOf time.Time) (*contracts.Watchlist, error)
	ListDates(ctx context.Context, variant string, limit int) ([]time.Time, error)
}

// WatchlistHandler handles watchlist API endpoints
// ⭐ SSOT: 관심종목 조회 API는 이 구조체에서만
type WatchlistHandler struct {
	store    WatchlistReader
	variants map[string]bool
	fallback string
	logger   *logger.Logger
}

// NewWatchlistHandler creates a watchlist handler.
// variants are the configured variant names; the first one is used when the query omits ?variant=
func NewWatchlistHandler(store WatchlistReader, variants []string, log *logger.Logger) *WatchlistHandler {
	h := &WatchlistHandler{
		store:    store,
		variants: make(map[string]bool, len(variants)),
		logger:   log,
	}
	for _, v := range variants {
		h.variants[v] = true
	}
	if len(variants) > 0 {
		h.fallback = variants[0]
	}
	return h
}

// WatchlistResponse is the JSON body of a watchlist lookup
type WatchlistResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	Data    *contracts.Watchlist `json:"data"`
}

// GetLatest returns the most recent watchlist of a variant
// GET /api/watchlist/latest?variant=breakout
func (h *WatchlistHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.variant(w, r)
	if !ok {
		return
	}

	wl, err := h.store.LatestWatchlist(r.Context(), variant)
	h.respondWatchlist(w, variant, wl, err)
}

// GetByDate returns the watchlist of a variant on one trading day
// GET /api/watchlist/{date}?variant=breakout
func (h *WatchlistHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.variant(w, r)
	if !ok {
		return
	}

	asOf, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date (expected YYYY-MM-DD)")
		return
	}

	wl, err := h.store.WatchlistByDate(r.Context(), variant, asOf)
	h.respondWatchlist(w, variant, wl, err)
}

// GetDates lists the dates a variant has stored watchlists for, newest first
// GET /api/watchlist/dates?variant=breakout&limit=30
func (h *WatchlistHandler) GetDates(w http.ResponseWriter, r *http.Request) {
	variant, ok := h.variant(w, r)
	if !ok {
		return
	}

	limit := defaultDatesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if n > maxDatesLimit {
			n = maxDatesLimit
		}
		limit = n
	}

	dates, err := h.store.ListDates(r.Context(), variant, limit)
	if err != nil {
		h.logger.WithError(err).WithField("variant", variant).Error("Failed to list watchlist dates")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve watchlist dates")
		return
	}

	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"variant": variant,
		"data":    out,
	})
}

// variant resolves ?variant= and rejects names not in the strategy config
func (h *WatchlistHandler) variant(w http.ResponseWriter, r *http.Request) (string, bool) {
	v := r.URL.Query().Get("variant")
	if v == "" {
		v = h.fallback
	}
	if !h.variants[v] {
		respondError(w, http.StatusBadRequest, "Unknown variant: "+v)
		return "", false
	}
	return v, true
}

func (h *WatchlistHandler) respondWatchlist(w http.ResponseWriter, variant string, wl *contracts.Watchlist, err error) {
	if errors.Is(err, selection.ErrWatchlistNotFound) {
		respondError(w, http.StatusNotFound, "No watchlist for variant "+variant)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("variant", variant).Error("Failed to get watchlist")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve watchlist")
		return
	}

	respondJSON(w, http.StatusOK, WatchlistResponse{
		Success: true,
		Count:   len(wl.Entries),
		Data:    wl,
	})
}
