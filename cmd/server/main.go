package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"quantfolio/internal/config"
	"quantfolio/internal/database"
	"quantfolio/internal/modules/backtest"
	"quantfolio/internal/modules/forecast"
	"quantfolio/internal/modules/optimization"
	"quantfolio/internal/modules/prices"
	"quantfolio/internal/modules/statistics"
	"quantfolio/internal/scheduler"
	"quantfolio/internal/server"
	"quantfolio/internal/workers"
	"quantfolio/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Quantfolio")

	// Initialize price database
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "prices.db"),
		Profile: database.ProfileStandard,
		Name:    "prices",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Price store and provider sync
	priceRepo := prices.NewRepository(db, log)
	provider := prices.NewProviderClient(cfg.ProviderURL, cfg.ProviderAPIKey, log)
	syncService := prices.NewSyncService(priceRepo, provider, log)

	// Forecast model registry. Remote models are only registered when a
	// sidecar URL is configured.
	var modelClient *forecast.ModelClient
	if cfg.ModelServiceURL != "" {
		modelClient = forecast.NewModelClient(cfg.ModelServiceURL, log)
	}
	registry := forecast.DefaultRegistry(modelClient)

	// Shared worker pool for model comparison and backtest fan-out
	pool := workers.NewPool(0, cfg.ForecastTimeout)

	// Analytics services
	statsService := statistics.NewService(priceRepo, log)
	optimizerService := optimization.NewService(priceRepo, log)
	forecastService := forecast.NewService(priceRepo, registry, pool, log)
	evaluator := backtest.NewEvaluator(priceRepo, registry, pool, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	if cfg.SyncEnabled {
		syncJob := scheduler.NewSyncPricesJob(syncService, log)
		if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.SyncSchedule).Msg("Failed to register sync job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Log:              log,
		Config:           cfg,
		DB:               db,
		PriceRepo:        priceRepo,
		SyncService:      syncService,
		StatsService:     statsService,
		OptimizerService: optimizerService,
		ForecastService:  forecastService,
		Evaluator:        evaluator,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
