// Package handlers provides HTTP handlers for forecasting and backtesting.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/backtest"
	"quantfolio/internal/modules/forecast"
)

// Handler handles forecast and backtest HTTP requests
type Handler struct {
	service   *forecast.Service
	evaluator *backtest.Evaluator
	log       zerolog.Logger
}

// NewHandler creates a new forecast handler
func NewHandler(service *forecast.Service, evaluator *backtest.Evaluator, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		evaluator: evaluator,
		log:       log.With().Str("handler", "forecast").Logger(),
	}
}

// RegisterRoutes registers all forecast routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/forecast", func(r chi.Router) {
		r.Post("/", h.HandleForecast)
		r.Post("/compare", h.HandleCompare)
		r.Post("/metrics", h.HandleMetrics)
	})
}

// HandleForecast handles POST /api/forecast
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecast.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Forecast(r.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Str("model", req.Model).Msg("Forecast request failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleCompare handles POST /api/forecast/compare
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req forecast.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Compare(r.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Msg("Compare request failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleMetrics handles POST /api/forecast/metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	var req backtest.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Backtest request failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrAssetNotFound) {
		return http.StatusNotFound
	}
	var insufficientData *domain.InsufficientDataError
	var insufficientHistory *domain.InsufficientHistoryError
	var modelFit *domain.ModelFitError
	if errors.As(err, &insufficientData) || errors.As(err, &insufficientHistory) || errors.As(err, &modelFit) {
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
