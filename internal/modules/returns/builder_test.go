package returns

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantfolio/internal/domain"
)

func makeSeries(symbol string, closes []float64) domain.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{
			Timestamp: start.AddDate(0, 0, i),
			Close:     c,
		}
	}
	return domain.PriceSeries{Symbol: symbol, Interval: domain.IntervalDaily, Points: points}
}

func TestBuild_SimpleReturns(t *testing.T) {
	series := makeSeries("AAA", []float64{100, 110, 99})

	rs, err := Build(series, nil, nil)
	require.NoError(t, err)

	require.Len(t, rs.Values, 2)
	require.Len(t, rs.Timestamps, 2)
	assert.InDelta(t, 0.10, rs.Values[0], 1e-12)
	assert.InDelta(t, -0.10, rs.Values[1], 1e-12)
	assert.Equal(t, "AAA", rs.Symbol)
	assert.Equal(t, domain.IntervalDaily, rs.Interval)

	// Return timestamps come from the later bar of each pair
	assert.Equal(t, series.Points[1].Timestamp, rs.Timestamps[0])
	assert.Equal(t, series.Points[2].Timestamp, rs.Timestamps[1])
}

func TestBuild_DateRangeFilter(t *testing.T) {
	series := makeSeries("AAA", []float64{100, 110, 121, 133.1, 146.41})

	from := series.Points[1].Timestamp
	to := series.Points[3].Timestamp
	rs, err := Build(series, &from, &to)
	require.NoError(t, err)

	// 3 bars in range yield 2 returns
	require.Len(t, rs.Values, 2)
	assert.InDelta(t, 0.10, rs.Values[0], 1e-9)
	assert.InDelta(t, 0.10, rs.Values[1], 1e-9)
}

func TestBuild_InsufficientData(t *testing.T) {
	series := makeSeries("AAA", []float64{100})

	_, err := Build(series, nil, nil)
	require.Error(t, err)

	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "AAA", insufficient.Symbol)
	assert.Equal(t, 2, insufficient.Required)
	assert.Equal(t, 1, insufficient.Actual)
}

func TestBuild_RangeFilterCanEmptySeries(t *testing.T) {
	series := makeSeries("AAA", []float64{100, 110, 121})

	from := series.Points[2].Timestamp.AddDate(0, 0, 1)
	_, err := Build(series, &from, nil)

	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Actual)
}

func TestBuild_InvalidClose(t *testing.T) {
	cases := []struct {
		name   string
		closes []float64
		index  int
	}{
		{"zero close", []float64{100, 0, 110}, 1},
		{"negative close", []float64{100, -5, 110}, 1},
		{"nan close", []float64{100, 110, math.NaN()}, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(makeSeries("BBB", tc.closes), nil, nil)

			var invalid *domain.InvalidPriceError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "BBB", invalid.Symbol)
			assert.Equal(t, tc.index, invalid.Index)
		})
	}
}
