package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
)

// ModelClient is an HTTP client for the model sidecar hosting the neural
// forecasters. The sidecar owns the heavy fit; this side only ships history
// and reads back the forecast arrays.
type ModelClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewModelClient creates a new model sidecar client.
func NewModelClient(baseURL string, log zerolog.Logger) *ModelClient {
	return &ModelClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second, // training can take a while
		},
		log: log.With().Str("client", "model_service").Logger(),
	}
}

// sidecarRequest mirrors the sidecar's forecast payload.
type sidecarRequest struct {
	Symbol          string    `json:"symbol"`
	Interval        string    `json:"interval"`
	Dates           []string  `json:"dates"`
	Closes          []float64 `json:"closes"`
	Horizon         int       `json:"horizon"`
	ConfidenceLevel float64   `json:"confidence_level"`
	LookbackWindow  int       `json:"lookback_window,omitempty"`
	Epochs          int       `json:"epochs,omitempty"`
}

// sidecarResponse mirrors the sidecar's forecast result.
type sidecarResponse struct {
	Dates           []string               `json:"dates"`
	PointForecast   []float64              `json:"point_forecast"`
	LowerBound      []float64              `json:"lower_bound"`
	UpperBound      []float64              `json:"upper_bound"`
	ConfidenceLevel float64                `json:"confidence_level"`
	ModelInfo       map[string]interface{} `json:"model_info"`
	Error           *string                `json:"error"`
}

// forecast posts the request to the given sidecar endpoint.
func (c *ModelClient) forecast(ctx context.Context, endpoint string, req sidecarRequest) (*sidecarResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.log.Debug().Str("endpoint", endpoint).Str("symbol", req.Symbol).Msg("Calling model service")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model service returned status %d", httpResp.StatusCode)
	}

	var resp sidecarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("model service error: %s", *resp.Error)
	}
	return &resp, nil
}

// remoteForecaster adapts a sidecar endpoint to the Forecaster capability.
type remoteForecaster struct {
	name       string
	endpoint   string
	client     *ModelClient
	opts       Options
	history    domain.PriceSeries
	contextCap int // keep only the most recent bars when > 0
	passTrain  bool
	fitted     bool
}

// newRecurrent wraps the sidecar's sequence model (trained per request with
// the given lookback window and epoch budget).
func newRecurrent(client *ModelClient, opts Options) *remoteForecaster {
	return &remoteForecaster{
		name:      ModelRecurrent,
		endpoint:  "/models/recurrent/forecast",
		client:    client,
		opts:      opts,
		passTrain: true,
	}
}

// newFoundation wraps the sidecar's zero-shot foundation model. Its context
// window caps at 1024 bars, so older history is dropped before shipping.
func newFoundation(client *ModelClient, opts Options) *remoteForecaster {
	return &remoteForecaster{
		name:       ModelFoundation,
		endpoint:   "/models/foundation/forecast",
		client:     client,
		opts:       opts,
		contextCap: 1024,
	}
}

func (f *remoteForecaster) Name() string { return f.name }

func (f *remoteForecaster) Fit(history domain.PriceSeries) error {
	if err := validateHistory(f.Name(), history); err != nil {
		return err
	}
	if f.contextCap > 0 && history.Len() > f.contextCap {
		trimmed := history
		trimmed.Points = history.Points[history.Len()-f.contextCap:]
		history = trimmed
	}
	f.history = history
	f.fitted = true
	return nil
}

func (f *remoteForecaster) Forecast(ctx context.Context, horizon int) (*Result, error) {
	if !f.fitted {
		return nil, fmt.Errorf("fit must be called before forecast")
	}
	if f.client == nil {
		return nil, &domain.ModelFitError{Model: f.name, Reason: "model service not configured"}
	}

	req := sidecarRequest{
		Symbol:          f.history.Symbol,
		Interval:        string(f.history.Interval),
		Dates:           formatDates(f.history.Timestamps()),
		Closes:          f.history.Closes(),
		Horizon:         horizon,
		ConfidenceLevel: f.opts.ConfidenceLevel,
	}
	if f.passTrain {
		req.LookbackWindow = f.opts.LookbackWindow
		req.Epochs = f.opts.Epochs
	}

	resp, err := f.client.forecast(ctx, f.endpoint, req)
	if err != nil {
		return nil, &domain.ModelFitError{Model: f.name, Reason: "model service call failed", Err: err}
	}
	if len(resp.PointForecast) != horizon || len(resp.LowerBound) != horizon || len(resp.UpperBound) != horizon {
		return nil, &domain.ModelFitError{
			Model:  f.name,
			Reason: fmt.Sprintf("model service returned %d points for horizon %d", len(resp.PointForecast), horizon),
		}
	}

	dates, err := parseDates(resp.Dates)
	if err != nil || len(dates) != horizon {
		// Date formatting quirks on the sidecar side should not sink a valid
		// forecast; project the dates locally instead.
		dates = futureDates(f.history, horizon)
	}

	confidence := resp.ConfidenceLevel
	if confidence == 0 {
		confidence = f.opts.ConfidenceLevel
	}
	return &Result{
		Dates:           dates,
		PointForecast:   resp.PointForecast,
		LowerBound:      resp.LowerBound,
		UpperBound:      resp.UpperBound,
		ConfidenceLevel: confidence,
		Model:           f.name,
	}, nil
}

func (f *remoteForecaster) ModelInfo() map[string]interface{} {
	info := map[string]interface{}{
		"display_name":     f.name,
		"remote":           true,
		"confidence_level": f.opts.ConfidenceLevel,
		"is_fitted":        f.fitted,
	}
	if f.passTrain {
		info["lookback_window"] = f.opts.LookbackWindow
		info["epochs"] = f.opts.Epochs
	}
	if f.contextCap > 0 {
		info["context_cap"] = f.contextCap
	}
	return info
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(time.RFC3339)
	}
	return out
}

func parseDates(dates []string) ([]time.Time, error) {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		t, err := time.Parse(time.RFC3339, d)
		if err != nil {
			return nil, err
		}
		out[i] = t.UTC()
	}
	return out, nil
}
