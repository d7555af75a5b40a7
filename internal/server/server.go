// Package server provides the HTTP server and routing for Quantfolio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"quantfolio/internal/config"
	"quantfolio/internal/database"
	"quantfolio/internal/modules/backtest"
	"quantfolio/internal/modules/forecast"
	forecasthandlers "quantfolio/internal/modules/forecast/handlers"
	"quantfolio/internal/modules/optimization"
	optimizationhandlers "quantfolio/internal/modules/optimization/handlers"
	"quantfolio/internal/modules/prices"
	priceshandlers "quantfolio/internal/modules/prices/handlers"
	"quantfolio/internal/modules/statistics"
	statisticshandlers "quantfolio/internal/modules/statistics/handlers"
)

// Config holds server configuration
type Config struct {
	Log              zerolog.Logger
	Config           *config.Config
	DB               *database.DB
	PriceRepo        *prices.Repository
	SyncService      *prices.SyncService
	StatsService     *statistics.Service
	OptimizerService *optimization.Service
	ForecastService  *forecast.Service
	Evaluator        *backtest.Evaluator
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check (outside /api for load balancers)
	s.router.Get("/health", s.handleHealth)

	systemHandlers := NewSystemHandlers(s.log, s.cfg.Config.DataDir, s.cfg.DB)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/health", systemHandlers.HandleHealth)
			r.Get("/info", systemHandlers.HandleInfo)
		})

		priceshandlers.NewHandler(s.cfg.PriceRepo, s.cfg.SyncService, s.log).RegisterRoutes(r)
		statisticshandlers.NewHandler(s.cfg.StatsService, s.log).RegisterRoutes(r)
		optimizationhandlers.NewHandler(s.cfg.OptimizerService, s.log).RegisterRoutes(r)
		forecasthandlers.NewHandler(s.cfg.ForecastService, s.cfg.Evaluator, s.log).RegisterRoutes(r)
	})
}

// handleHealth is a minimal liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.log.Error().Err(err).Msg("Failed to write health response")
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Config.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
