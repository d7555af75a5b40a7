// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/optimization"
)

// Handler handles optimization HTTP requests
type Handler struct {
	service *optimization.Service
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(service *optimization.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "optimization").Logger(),
	}
}

// RegisterRoutes registers all optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/portfolio/optimize", h.HandleOptimize)
}

// HandleOptimize handles POST /api/portfolio/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimization.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Optimize(req)
	if err != nil {
		h.log.Warn().Err(err).Str("objective", req.Objective).Msg("Optimization request failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP statuses. Infeasible targets and
// data-quality failures are 422: the request was well-formed, the data or
// target just cannot satisfy it.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrAssetNotFound) {
		return http.StatusNotFound
	}
	var infeasible *domain.InfeasibleTargetError
	var insufficientData *domain.InsufficientDataError
	var overlap *domain.InsufficientOverlapError
	if errors.As(err, &infeasible) || errors.As(err, &insufficientData) || errors.As(err, &overlap) {
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
