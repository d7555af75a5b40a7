package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantfolio/internal/domain"
)

func makeHistory(symbol string, interval domain.Interval, closes []float64) domain.PriceSeries {
	t := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{Timestamp: t, Close: c}
		t = interval.Next(t)
	}
	return domain.PriceSeries{Symbol: symbol, Interval: interval, Points: points}
}

func linearCloses(n int, start, slope float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + slope*float64(i)
	}
	return out
}

func assertBoundsInvariant(t *testing.T, result *Result, horizon int) {
	t.Helper()
	require.Len(t, result.Dates, horizon)
	require.Len(t, result.PointForecast, horizon)
	require.Len(t, result.LowerBound, horizon)
	require.Len(t, result.UpperBound, horizon)
	for h := 0; h < horizon; h++ {
		assert.LessOrEqual(t, result.LowerBound[h], result.PointForecast[h], "lower bound above point at step %d", h)
		assert.GreaterOrEqual(t, result.UpperBound[h], result.PointForecast[h], "upper bound below point at step %d", h)
	}
}

func TestRegistry_UnknownModel(t *testing.T) {
	registry := DefaultRegistry(nil)
	_, err := registry.New("oracle", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown forecast model")
}

func TestRegistry_ModelsSorted(t *testing.T) {
	registry := DefaultRegistry(nil)
	assert.Equal(t, []string{
		ModelBaseline, ModelFoundation, ModelHybrid, ModelRecurrent, ModelTrendSeasonal,
	}, registry.Models())
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	registry := NewRegistry()
	registry.Register("stub", func(opts Options) Forecaster { return newBaseline(opts) })
	require.Equal(t, []string{"stub"}, registry.Models())

	f, err := registry.New("stub", Options{})
	require.NoError(t, err)
	assert.Equal(t, ModelBaseline, f.Name())
}

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, defaultSpan, opts.Span)
	assert.Equal(t, defaultLookbackWindow, opts.LookbackWindow)
	assert.Equal(t, defaultEpochs, opts.Epochs)
	assert.Equal(t, defaultConfidence, opts.ConfidenceLevel)

	opts = Options{Span: 5, ConfidenceLevel: 0.8}.withDefaults()
	assert.Equal(t, 5, opts.Span)
	assert.Equal(t, 0.8, opts.ConfidenceLevel)
}

func TestValidateHistory_InsufficientSamples(t *testing.T) {
	history := makeHistory("AAA", domain.IntervalMonthly, linearCloses(10, 100, 1))

	err := validateHistory(ModelBaseline, history)
	require.Error(t, err)

	var fitErr *domain.ModelFitError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, ModelBaseline, fitErr.Model)

	var insufficient *domain.InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestValidateHistory_InvalidClose(t *testing.T) {
	closes := linearCloses(30, 100, 1)
	closes[12] = -3
	history := makeHistory("AAA", domain.IntervalMonthly, closes)

	err := validateHistory(ModelBaseline, history)
	require.Error(t, err)

	var invalid *domain.InvalidPriceError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 12, invalid.Index)
}

func TestFutureDates_ProjectsByInterval(t *testing.T) {
	history := makeHistory("AAA", domain.IntervalMonthly, linearCloses(30, 100, 1))
	last := history.Points[29].Timestamp

	dates := futureDates(history, 3)
	require.Len(t, dates, 3)
	assert.Equal(t, last.AddDate(0, 1, 0), dates[0])
	assert.Equal(t, last.AddDate(0, 2, 0), dates[1])
	assert.Equal(t, last.AddDate(0, 3, 0), dates[2])
}

func TestZScore_StandardQuantiles(t *testing.T) {
	assert.InDelta(t, 1.96, zScore(0.95), 0.01)
	assert.InDelta(t, 1.645, zScore(0.90), 0.01)
}
