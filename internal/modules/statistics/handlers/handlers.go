// Package handlers provides HTTP handlers for portfolio statistics.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/statistics"
)

// Handler handles statistics HTTP requests
type Handler struct {
	service *statistics.Service
	log     zerolog.Logger
}

// NewHandler creates a new statistics handler
func NewHandler(service *statistics.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "statistics").Logger(),
	}
}

// RegisterRoutes registers all statistics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/portfolio/stats", h.HandleStats)
}

// HandleStats handles POST /api/portfolio/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var req statistics.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Compute(req)
	if err != nil {
		h.log.Warn().Err(err).Msg("Statistics request failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP statuses: unknown symbols are 404,
// data-quality failures are 422, everything else is a bad request.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrAssetNotFound) {
		return http.StatusNotFound
	}
	var insufficientData *domain.InsufficientDataError
	var overlap *domain.InsufficientOverlapError
	if errors.As(err, &insufficientData) || errors.As(err, &overlap) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
