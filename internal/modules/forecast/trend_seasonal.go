package forecast

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"quantfolio/internal/domain"
)

// trendSeasonalForecaster decomposes the close series into an OLS linear
// trend plus per-phase seasonal indexes. The interval comes from the
// detrended, deseasonalized residual spread, so it is the model's own
// interval rather than a generic normal add-on.
type trendSeasonalForecaster struct {
	opts        Options
	history     domain.PriceSeries
	alpha       float64   // trend intercept
	beta        float64   // trend slope per bar
	seasonal    []float64 // per-phase index, nil when history spans < 2 cycles
	residualStd float64
	n           int
	fitted      bool
}

func newTrendSeasonal(opts Options) *trendSeasonalForecaster {
	return &trendSeasonalForecaster{opts: opts}
}

func (f *trendSeasonalForecaster) Name() string { return ModelTrendSeasonal }

func (f *trendSeasonalForecaster) Fit(history domain.PriceSeries) error {
	if err := validateHistory(f.Name(), history); err != nil {
		return err
	}

	closes := history.Closes()
	n := len(closes)
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	alpha, beta := stat.LinearRegression(xs, closes, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return &domain.ModelFitError{Model: f.Name(), Reason: "degenerate trend regression"}
	}

	detrended := make([]float64, n)
	for i := range closes {
		detrended[i] = closes[i] - (alpha + beta*xs[i])
	}

	period := history.Interval.SeasonalPeriod()
	var seasonal []float64
	if n >= 2*period {
		seasonal = seasonalIndexes(detrended, period)
	}

	residuals := make([]float64, n)
	for i := range detrended {
		residuals[i] = detrended[i]
		if seasonal != nil {
			residuals[i] -= seasonal[i%period]
		}
	}

	f.history = history
	f.alpha = alpha
	f.beta = beta
	f.seasonal = seasonal
	f.residualStd = stat.StdDev(residuals, nil)
	f.n = n
	f.fitted = true
	return nil
}

func (f *trendSeasonalForecaster) Forecast(_ context.Context, horizon int) (*Result, error) {
	if !f.fitted {
		return nil, fmt.Errorf("fit must be called before forecast")
	}

	period := f.history.Interval.SeasonalPeriod()
	z := zScore(f.opts.ConfidenceLevel)
	result := &Result{
		Dates:           futureDates(f.history, horizon),
		PointForecast:   make([]float64, horizon),
		LowerBound:      make([]float64, horizon),
		UpperBound:      make([]float64, horizon),
		ConfidenceLevel: f.opts.ConfidenceLevel,
		Model:           f.Name(),
	}
	for h := 0; h < horizon; h++ {
		x := f.n + h
		point := f.alpha + f.beta*float64(x)
		if f.seasonal != nil {
			point += f.seasonal[x%period]
		}
		margin := z * f.residualStd * math.Sqrt(float64(h+1))
		result.PointForecast[h] = point
		result.LowerBound[h] = point - margin
		result.UpperBound[h] = point + margin
	}
	return result, nil
}

func (f *trendSeasonalForecaster) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"display_name":     "Trend + seasonality",
		"trend_slope":      f.beta,
		"seasonal":         f.seasonal != nil,
		"residual_std":     f.residualStd,
		"confidence_level": f.opts.ConfidenceLevel,
		"is_fitted":        f.fitted,
	}
}

// fittedValues reconstructs the in-sample model values, used by the hybrid
// variant to build its residual training set.
func (f *trendSeasonalForecaster) fittedValues() []float64 {
	period := f.history.Interval.SeasonalPeriod()
	out := make([]float64, f.n)
	for i := range out {
		out[i] = f.alpha + f.beta*float64(i)
		if f.seasonal != nil {
			out[i] += f.seasonal[i%period]
		}
	}
	return out
}

// seasonalIndexes averages the detrended values per phase and centers the
// indexes so they sum to zero over one cycle.
func seasonalIndexes(detrended []float64, period int) []float64 {
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range detrended {
		sums[i%period] += v
		counts[i%period]++
	}

	indexes := make([]float64, period)
	var total float64
	for p := range indexes {
		if counts[p] > 0 {
			indexes[p] = sums[p] / float64(counts[p])
		}
		total += indexes[p]
	}
	center := total / float64(period)
	for p := range indexes {
		indexes[p] -= center
	}
	return indexes
}
