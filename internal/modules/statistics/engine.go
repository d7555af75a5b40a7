// Package statistics computes descriptive per-asset return statistics.
package statistics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/risk"
)

// ReturnsSummary is the compact min/max/mean block sent with each asset.
type ReturnsSummary struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// AssetStats holds the full descriptive block for one asset.
type AssetStats struct {
	Symbol               string          `json:"symbol"`
	Interval             domain.Interval `json:"interval"`
	Observations         int             `json:"observations"`
	AvgReturn            float64         `json:"avg_return"`
	Variance             float64         `json:"variance"`
	StdDev               float64         `json:"std_dev"`
	Skewness             float64         `json:"skewness"`
	ExcessKurtosis       float64         `json:"excess_kurtosis"`
	CumulativeReturn     float64         `json:"cumulative_return"`
	MaxDrawdown          float64         `json:"max_drawdown"`
	AnnualizedVolatility float64         `json:"annualized_volatility"`
	SharpeScore          float64         `json:"sharpe_score"`
	VaR95                float64         `json:"var_95"`
	CVaR95               float64         `json:"cvar_95"`
	ReturnsSummary       ReturnsSummary  `json:"returns_summary"`
	LastReturns          []float64       `json:"last_returns"` // up to 30 most recent, for sparklines
}

// maxLastReturns caps the sparkline payload.
const maxLastReturns = 30

// Compute evaluates the descriptive statistics of a return series. The
// series must carry at least the interval's minimum sample count.
func Compute(rs domain.ReturnSeries) (*AssetStats, error) {
	required := rs.Interval.MinSamples()
	if rs.Len() < required {
		return nil, &domain.InsufficientDataError{
			Symbol:   rs.Symbol,
			Interval: rs.Interval,
			Required: required,
			Actual:   rs.Len(),
		}
	}

	values := rs.Values
	factor := rs.Interval.AnnualizationFactor()

	mean := stat.Mean(values, nil)
	variance := stat.Variance(values, nil)
	stdDev := math.Sqrt(variance)

	cumulative := 1.0
	minR, maxR := values[0], values[0]
	for _, r := range values {
		cumulative *= 1 + r
		if r < minR {
			minR = r
		}
		if r > maxR {
			maxR = r
		}
	}

	sharpe := 0.0
	if stdDev > 0 {
		sharpe = mean / stdDev * math.Sqrt(factor)
	}

	last := values
	if len(last) > maxLastReturns {
		last = last[len(last)-maxLastReturns:]
	}
	lastCopy := make([]float64, len(last))
	copy(lastCopy, last)

	return &AssetStats{
		Symbol:               rs.Symbol,
		Interval:             rs.Interval,
		Observations:         rs.Len(),
		AvgReturn:            mean,
		Variance:             variance,
		StdDev:               stdDev,
		Skewness:             stat.Skew(values, nil),
		ExcessKurtosis:       stat.ExKurtosis(values, nil),
		CumulativeReturn:     cumulative - 1,
		MaxDrawdown:          risk.MaxDrawdown(values),
		AnnualizedVolatility: stdDev * math.Sqrt(factor),
		SharpeScore:          sharpe,
		VaR95:                risk.ValueAtRisk(values, 0.95),
		CVaR95:               risk.ConditionalValueAtRisk(values, 0.95),
		ReturnsSummary:       ReturnsSummary{Min: minR, Max: maxR, Mean: mean},
		LastReturns:          lastCopy,
	}, nil
}
