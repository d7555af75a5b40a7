// Package handlers provides HTTP handlers for asset and price sync operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/prices"
)

// Handler handles asset HTTP requests
type Handler struct {
	repo *prices.Repository
	sync *prices.SyncService
	log  zerolog.Logger
}

// NewHandler creates a new asset handler
func NewHandler(repo *prices.Repository, sync *prices.SyncService, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		sync: sync,
		log:  log.With().Str("handler", "assets").Logger(),
	}
}

// HandleListAssets handles GET /api/assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.repo.ListAssets()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list assets")
		http.Error(w, "Failed to list assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"assets": assets})
}

type syncRequest struct {
	Interval domain.Interval `json:"interval"`
}

// HandleSync handles POST /api/assets/{symbol}/sync
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request, symbol string) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Interval.Valid() {
		http.Error(w, "Unsupported interval", http.StatusBadRequest)
		return
	}

	report, err := h.sync.Sync(r.Context(), symbol, req.Interval)
	if err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Sync failed")
		http.Error(w, "Sync failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
