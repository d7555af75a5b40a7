package forecast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantfolio/internal/domain"
)

func sidecarStub(t *testing.T, handler http.HandlerFunc) *ModelClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewModelClient(server.URL, zerolog.Nop())
}

func TestRemoteForecaster_Success(t *testing.T) {
	var gotPath string
	var gotReq sidecarRequest
	client := sidecarStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := sidecarResponse{
			Dates:           []string{"2024-06-03T00:00:00Z", "2024-06-10T00:00:00Z"},
			PointForecast:   []float64{101, 102},
			LowerBound:      []float64{95, 94},
			UpperBound:      []float64{107, 110},
			ConfidenceLevel: 0.95,
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	history := makeHistory("AAA", domain.IntervalWeekly, linearCloses(60, 100, 0.5))
	f := newRecurrent(client, Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	result, err := f.Forecast(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, "/models/recurrent/forecast", gotPath)
	assert.Equal(t, "AAA", gotReq.Symbol)
	assert.Equal(t, "1wk", gotReq.Interval)
	assert.Equal(t, 2, gotReq.Horizon)
	assert.Equal(t, defaultLookbackWindow, gotReq.LookbackWindow)
	assert.Equal(t, defaultEpochs, gotReq.Epochs)
	assert.Len(t, gotReq.Closes, 60)

	assert.Equal(t, ModelRecurrent, result.Model)
	assert.Equal(t, []float64{101, 102}, result.PointForecast)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), result.Dates[0])
	assertBoundsInvariant(t, result, 2)
}

func TestRemoteForecaster_ServerErrorBecomesModelFitError(t *testing.T) {
	client := sidecarStub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "training crashed", http.StatusInternalServerError)
	})

	history := makeHistory("AAA", domain.IntervalWeekly, linearCloses(60, 100, 0.5))
	f := newRecurrent(client, Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	_, err := f.Forecast(context.Background(), 2)
	require.Error(t, err)

	var fitErr *domain.ModelFitError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, ModelRecurrent, fitErr.Model)
}

func TestRemoteForecaster_ErrorFieldBecomesModelFitError(t *testing.T) {
	client := sidecarStub(t, func(w http.ResponseWriter, r *http.Request) {
		msg := "series too volatile"
		_ = json.NewEncoder(w).Encode(sidecarResponse{Error: &msg})
	})

	history := makeHistory("AAA", domain.IntervalWeekly, linearCloses(60, 100, 0.5))
	f := newFoundation(client, Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	_, err := f.Forecast(context.Background(), 2)
	var fitErr *domain.ModelFitError
	require.ErrorAs(t, err, &fitErr)
	assert.Contains(t, fitErr.Err.Error(), "series too volatile")
}

func TestRemoteForecaster_LengthMismatch(t *testing.T) {
	client := sidecarStub(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sidecarResponse{
			PointForecast: []float64{101},
			LowerBound:    []float64{95},
			UpperBound:    []float64{107},
		})
	})

	history := makeHistory("AAA", domain.IntervalWeekly, linearCloses(60, 100, 0.5))
	f := newRecurrent(client, Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	_, err := f.Forecast(context.Background(), 3)
	var fitErr *domain.ModelFitError
	require.ErrorAs(t, err, &fitErr)
}

func TestRemoteForecaster_NilClient(t *testing.T) {
	history := makeHistory("AAA", domain.IntervalWeekly, linearCloses(60, 100, 0.5))

	f := newRecurrent(nil, Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	_, err := f.Forecast(context.Background(), 2)
	var fitErr *domain.ModelFitError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, "model service not configured", fitErr.Reason)
}

func TestRemoteForecaster_UnparseableDatesFallBackLocally(t *testing.T) {
	client := sidecarStub(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sidecarResponse{
			Dates:         []string{"not-a-date", "also-not"},
			PointForecast: []float64{101, 102},
			LowerBound:    []float64{95, 94},
			UpperBound:    []float64{107, 110},
		})
	})

	history := makeHistory("AAA", domain.IntervalWeekly, linearCloses(60, 100, 0.5))
	f := newRecurrent(client, Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	result, err := f.Forecast(context.Background(), 2)
	require.NoError(t, err)

	last := history.Points[59].Timestamp
	assert.Equal(t, last.AddDate(0, 0, 7), result.Dates[0])
	assert.Equal(t, last.AddDate(0, 0, 14), result.Dates[1])
}

func TestFoundation_TrimsHistoryToContextCap(t *testing.T) {
	var gotCloses int
	client := sidecarStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req sidecarRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotCloses = len(req.Closes)
		_ = json.NewEncoder(w).Encode(sidecarResponse{
			PointForecast: []float64{1},
			LowerBound:    []float64{1},
			UpperBound:    []float64{1},
		})
	})

	history := makeHistory("AAA", domain.IntervalDaily, linearCloses(1500, 100, 0.01))
	f := newFoundation(client, Options{}.withDefaults())
	require.NoError(t, f.Fit(history))

	_, err := f.Forecast(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1024, gotCloses, "foundation context caps at 1024 bars")
}
