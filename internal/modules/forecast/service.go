package forecast

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/workers"
)

// Request is the forecast request contract.
type Request struct {
	Symbol          string          `json:"symbol"`
	Interval        domain.Interval `json:"interval"`
	Periods         int             `json:"periods"`
	Model           string          `json:"model"`
	LookbackWindow  int             `json:"lookback_window,omitempty"`
	Epochs          int             `json:"epochs,omitempty"`
	ConfidenceLevel float64         `json:"confidence_level,omitempty"`
}

// Validate enforces the request contract. Model may stay empty for compare
// mode, which runs every registered variant.
func (r *Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !r.Interval.Valid() {
		return fmt.Errorf("unsupported interval: %q", r.Interval)
	}
	if r.Periods < 1 || r.Periods > 4 {
		return fmt.Errorf("periods must be between 1 and 4, got %d", r.Periods)
	}
	return nil
}

func (r *Request) options() Options {
	return Options{
		LookbackWindow:  r.LookbackWindow,
		Epochs:          r.Epochs,
		ConfidenceLevel: r.ConfidenceLevel,
	}.withDefaults()
}

// ModelForecast pairs one model's forecast with its diagnostics.
type ModelForecast struct {
	Model     string                 `json:"model"`
	Result    *Result                `json:"result"`
	ModelInfo map[string]interface{} `json:"model_info"`
}

// CompareResponse is the partial-result contract of compare mode: one entry
// per succeeding model, failures annotated separately, never null rows.
type CompareResponse struct {
	Symbol   string            `json:"symbol"`
	Interval domain.Interval   `json:"interval"`
	Results  []ModelForecast   `json:"results"`
	Failures map[string]string `json:"failures,omitempty"`
}

// Service runs forecast requests against the model registry.
type Service struct {
	source   domain.PriceSource
	registry *Registry
	pool     *workers.Pool
	log      zerolog.Logger
}

// NewService creates a new forecast service.
func NewService(source domain.PriceSource, registry *Registry, pool *workers.Pool, log zerolog.Logger) *Service {
	return &Service{
		source:   source,
		registry: registry,
		pool:     pool,
		log:      log.With().Str("component", "forecast").Logger(),
	}
}

// Registry exposes the model registry, used by the backtest evaluator.
func (s *Service) Registry() *Registry { return s.registry }

// Forecast runs a single model.
func (s *Service) Forecast(ctx context.Context, req Request) (*ModelForecast, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = ModelBaseline
	}

	history, err := s.source.GetSeries(req.Symbol, req.Interval, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", req.Symbol, err)
	}

	return s.runModel(ctx, model, req.options(), history, req.Periods)
}

// Compare runs every registered model concurrently on the worker pool. A
// failing or slow model is reported in Failures without affecting siblings.
func (s *Service) Compare(ctx context.Context, req Request) (*CompareResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	history, err := s.source.GetSeries(req.Symbol, req.Interval, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", req.Symbol, err)
	}

	models := s.registry.Models()
	opts := req.options()
	tasks := make([]workers.Task, len(models))
	for i, model := range models {
		model := model
		tasks[i] = workers.Task{
			Name: model,
			Fn: func(taskCtx context.Context) (interface{}, error) {
				return s.runModel(taskCtx, model, opts, history, req.Periods)
			},
		}
	}

	resp := &CompareResponse{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Failures: make(map[string]string),
	}
	for _, result := range s.pool.Run(ctx, tasks) {
		if result.Err != nil {
			s.log.Warn().Err(result.Err).Str("model", result.Name).Msg("Model failed in compare run")
			resp.Failures[result.Name] = result.Err.Error()
			continue
		}
		resp.Results = append(resp.Results, *result.Value.(*ModelForecast))
	}
	if len(resp.Failures) == 0 {
		resp.Failures = nil
	}
	return resp, nil
}

func (s *Service) runModel(ctx context.Context, model string, opts Options, history domain.PriceSeries, horizon int) (*ModelForecast, error) {
	forecaster, err := s.registry.New(model, opts)
	if err != nil {
		return nil, err
	}
	if err := forecaster.Fit(history); err != nil {
		return nil, err
	}
	result, err := forecaster.Forecast(ctx, horizon)
	if err != nil {
		return nil, err
	}
	return &ModelForecast{
		Model:     model,
		Result:    result,
		ModelInfo: forecaster.ModelInfo(),
	}, nil
}
