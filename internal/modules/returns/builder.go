// Package returns converts price series into simple per-period return series.
package returns

import (
	"math"
	"time"

	"quantfolio/internal/domain"
)

// Build computes simple returns r_t = close_t/close_{t-1} - 1 from the price
// series, optionally restricted to [from, to] before differencing. Missing
// bars are never zero-filled: a non-positive or NaN close invalidates the
// series.
func Build(series domain.PriceSeries, from, to *time.Time) (domain.ReturnSeries, error) {
	out := domain.ReturnSeries{Symbol: series.Symbol, Interval: series.Interval}

	points := filterRange(series.Points, from, to)
	if len(points) < 2 {
		return out, &domain.InsufficientDataError{
			Symbol:   series.Symbol,
			Interval: series.Interval,
			Required: 2,
			Actual:   len(points),
		}
	}

	for i, p := range points {
		if math.IsNaN(p.Close) || p.Close <= 0 {
			return out, &domain.InvalidPriceError{Symbol: series.Symbol, Index: i, Close: p.Close}
		}
	}

	out.Timestamps = make([]time.Time, 0, len(points)-1)
	out.Values = make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		out.Timestamps = append(out.Timestamps, points[i].Timestamp)
		out.Values = append(out.Values, points[i].Close/points[i-1].Close-1)
	}
	return out, nil
}

func filterRange(points []domain.PricePoint, from, to *time.Time) []domain.PricePoint {
	if from == nil && to == nil {
		return points
	}
	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if from != nil && p.Timestamp.Before(*from) {
			continue
		}
		if to != nil && p.Timestamp.After(*to) {
			continue
		}
		out = append(out, p)
	}
	return out
}
