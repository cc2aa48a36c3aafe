package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/internal/strategyconfig"
	"github.com/wonny/rsscreen/pkg/logger"
)

// UniverseReader reads the latest stored universe snapshot
type UniverseReader interface {
	GetLatestUniverse(ctx context.Context) (*contracts.Universe, error)
}

// DataHandler handles universe and strategy config endpoints
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	universes UniverseReader
	strategy  *strategyconfig.Config
	logger    *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(universes UniverseReader, strategy *strategyconfig.Config, log *logger.Logger) *DataHandler {
	return &DataHandler{
		universes: universes,
		strategy:  strategy,
		logger:    log,
	}
}

// GetUniverse returns the latest universe
// GET /api/universe/latest
func (h *DataHandler) GetUniverse(w http.ResponseWriter, r *http.Request) {
	universe, err := h.universes.GetLatestUniverse(r.Context())
	if errors.Is(err, s1_universe.ErrNoSnapshot) {
		respondError(w, http.StatusNotFound, "No universe snapshot")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get universe")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve universe")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   universe.Count(),
		"data":    universe,
	})
}

// GetConfig returns the active variants and the strategy config hash
// GET /api/config
func (h *DataHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	hash, err := strategyconfig.Hash(h.strategy)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash strategy config")
		respondError(w, http.StatusInternalServerError, "Failed to hash config")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"strategy_id": h.strategy.Meta.StrategyID,
		"benchmark":   h.strategy.Benchmark.Ticker,
		"variants":    h.strategy.VariantNames(),
		"config_hash": hash,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
