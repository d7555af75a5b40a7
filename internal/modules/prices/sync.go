package prices

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
)

// Fetcher downloads history from the upstream data provider.
type Fetcher interface {
	FetchSeries(ctx context.Context, symbol string, interval domain.Interval) (domain.Asset, []domain.PricePoint, error)
}

// SyncService pulls provider history into the local price store.
type SyncService struct {
	repo    *Repository
	fetcher Fetcher
	log     zerolog.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(repo *Repository, fetcher Fetcher, log zerolog.Logger) *SyncService {
	return &SyncService{
		repo:    repo,
		fetcher: fetcher,
		log:     log.With().Str("component", "price_sync").Logger(),
	}
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	JobID    string          `json:"job_id"`
	Symbol   string          `json:"symbol"`
	Interval domain.Interval `json:"interval"`
	Bars     int             `json:"bars"`
}

// Sync fetches the full history for one symbol and stores it.
func (s *SyncService) Sync(ctx context.Context, symbol string, interval domain.Interval) (*SyncReport, error) {
	jobID := uuid.NewString()
	log := s.log.With().Str("job_id", jobID).Str("symbol", symbol).Str("interval", string(interval)).Logger()

	asset, points, err := s.fetcher.FetchSeries(ctx, symbol, interval)
	if err != nil {
		log.Error().Err(err).Msg("Provider fetch failed")
		return nil, fmt.Errorf("sync %s: %w", symbol, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("sync %s: provider returned no bars", symbol)
	}

	if _, err := s.repo.UpsertAsset(asset); err != nil {
		return nil, fmt.Errorf("sync %s: %w", symbol, err)
	}
	stored, err := s.repo.SavePoints(symbol, interval, points)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", symbol, err)
	}

	log.Info().Int("bars", stored).Msg("Sync complete")
	return &SyncReport{JobID: jobID, Symbol: symbol, Interval: interval, Bars: stored}, nil
}

// SyncAll refreshes every known asset at the given interval. Per-asset
// failures are logged and skipped so one bad symbol cannot stall the run.
func (s *SyncService) SyncAll(ctx context.Context, interval domain.Interval) []SyncReport {
	assets, err := s.repo.ListAssets()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list assets for sync")
		return nil
	}

	var reports []SyncReport
	for _, asset := range assets {
		if ctx.Err() != nil {
			s.log.Warn().Msg("Sync run cancelled")
			break
		}
		report, err := s.Sync(ctx, asset.Symbol, interval)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", asset.Symbol).Msg("Skipping asset after sync failure")
			continue
		}
		reports = append(reports, *report)
	}
	return reports
}
