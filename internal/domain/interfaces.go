package domain

import "time"

// PriceSource provides price history to the analytics modules.
// The sqlite repository is the production implementation; tests use in-memory fakes.
type PriceSource interface {
	// GetSeries returns the stored bars for symbol at interval, oldest first,
	// optionally restricted to [from, to]. Returns ErrAssetNotFound when the
	// symbol has never been synced; an empty range yields an empty series.
	GetSeries(symbol string, interval Interval, from, to *time.Time) (PriceSeries, error)
}
