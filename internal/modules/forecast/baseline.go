package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"quantfolio/internal/domain"
)

// baselineForecaster smooths the close series with an exponential moving
// average and carries the last smoothed level forward. Intervals are a
// normal approximation from the in-sample residual spread, widening with
// the square root of the step.
type baselineForecaster struct {
	opts        Options
	history     domain.PriceSeries
	level       float64
	residualStd float64
	fitted      bool
}

func newBaseline(opts Options) *baselineForecaster {
	return &baselineForecaster{opts: opts}
}

func (f *baselineForecaster) Name() string { return ModelBaseline }

func (f *baselineForecaster) Fit(history domain.PriceSeries) error {
	if err := validateHistory(f.Name(), history); err != nil {
		return err
	}

	closes := history.Closes()
	span := f.opts.Span
	if span >= len(closes) {
		span = len(closes) / 2
	}
	if span < 2 {
		span = 2
	}

	smoothed := talib.Ema(closes, span)

	// talib seeds the EMA with an SMA, so the first span-1 values are not
	// meaningful. Residuals come from the stable region only.
	residuals := make([]float64, 0, len(closes)-span+1)
	for i := span - 1; i < len(closes); i++ {
		residuals = append(residuals, closes[i]-smoothed[i])
	}

	f.history = history
	f.level = smoothed[len(smoothed)-1]
	if len(residuals) >= 2 {
		f.residualStd = stat.StdDev(residuals, nil)
	}
	f.fitted = true
	return nil
}

func (f *baselineForecaster) Forecast(_ context.Context, horizon int) (*Result, error) {
	if !f.fitted {
		return nil, fmt.Errorf("fit must be called before forecast")
	}

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
		margin := z * f.residualStd * math.Sqrt(float64(h+1))
		result.PointForecast[h] = f.level
		result.LowerBound[h] = f.level - margin
		result.UpperBound[h] = f.level + margin
	}
	return result, nil
}

func (f *baselineForecaster) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"display_name":     "EWMA baseline",
		"span":             f.opts.Span,
		"residual_std":     f.residualStd,
		"confidence_level": f.opts.ConfidenceLevel,
		"is_fitted":        f.fitted,
	}
}
