package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/prices"
)

// syncAllTimeout bounds a full sync run across all assets.
const syncAllTimeout = 10 * time.Minute

// SyncPricesJob refreshes daily history for every known asset.
type SyncPricesJob struct {
	sync *prices.SyncService
	log  zerolog.Logger
}

// NewSyncPricesJob creates a new price sync job
func NewSyncPricesJob(sync *prices.SyncService, log zerolog.Logger) *SyncPricesJob {
	return &SyncPricesJob{
		sync: sync,
		log:  log.With().Str("job", "sync_prices").Logger(),
	}
}

// Name returns the job name
func (j *SyncPricesJob) Name() string {
	return "sync_prices"
}

// Run executes the sync across all assets at the daily interval
func (j *SyncPricesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), syncAllTimeout)
	defer cancel()

	reports := j.sync.SyncAll(ctx, domain.IntervalDaily)
	j.log.Info().Int("assets_synced", len(reports)).Msg("Scheduled price sync finished")
	return nil
}
