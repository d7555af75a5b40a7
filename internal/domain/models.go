// Package domain provides the core types shared across the analytics modules.
package domain

import "time"

// Interval identifies the bar spacing of a price series.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalMonthly Interval = "1mo"
)

// intervalPolicy carries the per-interval constants used across the engine.
type intervalPolicy struct {
	annualization  float64 // periods per year, scales returns and volatility
	minSamples     int     // minimum return observations for descriptive statistics
	minFitSamples  int     // minimum price observations to fit a forecast model
	seasonalPeriod int     // phases per seasonal cycle
	boundsHorizon  int     // default horizon for backtest bounds forecasts
}

var intervalPolicies = map[Interval]intervalPolicy{
	IntervalDaily:   {annualization: 252, minSamples: 252, minFitSamples: 60, seasonalPeriod: 5, boundsHorizon: 20},
	IntervalWeekly:  {annualization: 52, minSamples: 52, minFitSamples: 52, seasonalPeriod: 52, boundsHorizon: 12},
	IntervalMonthly: {annualization: 12, minSamples: 24, minFitSamples: 24, seasonalPeriod: 12, boundsHorizon: 4},
}

// Valid reports whether the interval is one of the supported bar spacings.
func (i Interval) Valid() bool {
	_, ok := intervalPolicies[i]
	return ok
}

// AnnualizationFactor returns the number of periods per year for the interval.
func (i Interval) AnnualizationFactor() float64 {
	return intervalPolicies[i].annualization
}

// MinSamples returns the minimum number of return observations required
// before descriptive statistics are considered meaningful.
func (i Interval) MinSamples() int {
	return intervalPolicies[i].minSamples
}

// MinFitSamples returns the minimum number of price observations required
// to fit a forecast model at this interval.
func (i Interval) MinFitSamples() int {
	return intervalPolicies[i].minFitSamples
}

// SeasonalPeriod returns the number of phases in one seasonal cycle.
func (i Interval) SeasonalPeriod() int {
	return intervalPolicies[i].seasonalPeriod
}

// DefaultBoundsHorizon returns the default number of future periods for
// backtest bounds forecasts.
func (i Interval) DefaultBoundsHorizon() int {
	return intervalPolicies[i].boundsHorizon
}

// Next returns the timestamp one bar after t.
func (i Interval) Next(t time.Time) time.Time {
	switch i {
	case IntervalWeekly:
		return t.AddDate(0, 0, 7)
	case IntervalMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// AssetType classifies an asset for display purposes.
type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeETF    AssetType = "ETF"
	AssetTypeCrypto AssetType = "CRYPTO"
	AssetTypeIndex  AssetType = "INDEX"
)

// Asset is a tracked instrument with synced price history.
type Asset struct {
	LastUpdated time.Time `json:"last_updated"`
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	AssetType   AssetType `json:"asset_type"`
	Currency    string    `json:"currency"`
}

// PricePoint is a single OHLCV bar.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PriceSeries is an ordered (oldest first) run of bars for one symbol.
type PriceSeries struct {
	Symbol   string       `json:"symbol"`
	Interval Interval     `json:"interval"`
	Points   []PricePoint `json:"points"`
}

// Len returns the number of bars in the series.
func (s PriceSeries) Len() int { return len(s.Points) }

// Closes returns the close column of the series.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Timestamps returns the timestamp column of the series.
func (s PriceSeries) Timestamps() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Timestamp
	}
	return out
}

// ReturnSeries holds per-period simple returns. Values[i] is the return of
// the bar at Timestamps[i] relative to the previous bar, so the series is
// one element shorter than the price series it came from.
type ReturnSeries struct {
	Symbol     string      `json:"symbol"`
	Interval   Interval    `json:"interval"`
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
}

// Len returns the number of return observations.
func (r ReturnSeries) Len() int { return len(r.Values) }
