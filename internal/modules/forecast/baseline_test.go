package forecast

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantfolio/internal/domain"
)

func TestBaseline_FlatForecastWithWideningBounds(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		// Oscillation around 100 gives a nonzero residual spread
		closes[i] = 100 + 3*math.Sin(float64(i))
	}
	history := makeHistory("AAA", domain.IntervalMonthly, closes)

	f := newBaseline(Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	result, err := f.Forecast(context.Background(), 4)
	require.NoError(t, err)
	assertBoundsInvariant(t, result, 4)

	assert.Equal(t, ModelBaseline, result.Model)
	assert.Equal(t, 0.95, result.ConfidenceLevel)

	// Point forecast is the carried-forward smoothed level
	for h := 1; h < 4; h++ {
		assert.Equal(t, result.PointForecast[0], result.PointForecast[h])
	}

	// Interval widens with the step
	for h := 1; h < 4; h++ {
		prevWidth := result.UpperBound[h-1] - result.LowerBound[h-1]
		width := result.UpperBound[h] - result.LowerBound[h]
		assert.Greater(t, width, prevWidth)
	}
}

func TestBaseline_ConstantSeriesDegenerateInterval(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50
	}
	history := makeHistory("AAA", domain.IntervalMonthly, closes)

	f := newBaseline(Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	result, err := f.Forecast(context.Background(), 2)
	require.NoError(t, err)

	for h := 0; h < 2; h++ {
		assert.InDelta(t, 50, result.PointForecast[h], 1e-9)
		assert.Equal(t, result.PointForecast[h], result.LowerBound[h])
		assert.Equal(t, result.PointForecast[h], result.UpperBound[h])
	}
}

func TestBaseline_SpanShrinksForShortHistory(t *testing.T) {
	history := makeHistory("AAA", domain.IntervalMonthly, linearCloses(24, 100, 1))

	// Span larger than the history must not sink the fit
	f := newBaseline(Options{Span: 100}.withDefaults())
	require.NoError(t, f.Fit(history))

	result, err := f.Forecast(context.Background(), 1)
	require.NoError(t, err)
	assertBoundsInvariant(t, result, 1)
}

func TestBaseline_ForecastBeforeFit(t *testing.T) {
	f := newBaseline(Options{}.withDefaults())
	_, err := f.Forecast(context.Background(), 1)
	assert.Error(t, err)
}

func TestBaseline_InsufficientHistory(t *testing.T) {
	history := makeHistory("AAA", domain.IntervalMonthly, linearCloses(5, 100, 1))

	f := newBaseline(Options{}.withDefaults())
	err := f.Fit(history)

	var fitErr *domain.ModelFitError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, ModelBaseline, fitErr.Model)
}

func TestBaseline_ModelInfo(t *testing.T) {
	history := makeHistory("AAA", domain.IntervalMonthly, linearCloses(30, 100, 1))

	f := newBaseline(Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	info := f.ModelInfo()
	assert.Equal(t, true, info["is_fitted"])
	assert.Equal(t, defaultSpan, info["span"])
}
