// Package backtest walk-forward evaluates forecast models against realized
// prices and aggregates comparable error metrics.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/forecast"
	"quantfolio/internal/workers"
)

// defaultLastN is the walk-forward window when the request does not set one.
const defaultLastN = 20

// minSuccessfulSteps is the floor below which a model's metrics are too
// noisy to report; such a model is dropped from the result set.
const minSuccessfulSteps = 5

// Request is the backtest request contract.
type Request struct {
	Symbol          string          `json:"symbol"`
	Interval        domain.Interval `json:"interval"`
	LastN           int             `json:"last_n"`
	BoundsHorizon   int             `json:"bounds_horizon_periods"`
	Models          []string        `json:"models"`
	LookbackWindow  int             `json:"lookback_window,omitempty"`
	Epochs          int             `json:"epochs,omitempty"`
	ConfidenceLevel float64         `json:"confidence_level,omitempty"`
}

// Validate enforces the request contract and applies defaults.
func (r *Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !r.Interval.Valid() {
		return fmt.Errorf("unsupported interval: %q", r.Interval)
	}
	if r.LastN == 0 {
		r.LastN = defaultLastN
	}
	if r.LastN < minSuccessfulSteps {
		return fmt.Errorf("last_n must be at least %d, got %d", minSuccessfulSteps, r.LastN)
	}
	if r.BoundsHorizon == 0 {
		r.BoundsHorizon = r.Interval.DefaultBoundsHorizon()
	}
	if r.BoundsHorizon < 0 {
		return fmt.Errorf("bounds_horizon_periods must be positive, got %d", r.BoundsHorizon)
	}
	return nil
}

// MetricRow is one model's aggregated walk-forward error metrics.
type MetricRow struct {
	Model string  `json:"model"`
	MAE   float64 `json:"mae"`
	RMSE  float64 `json:"rmse"`
	MAPE  float64 `json:"mape"` // percent; zero actuals contribute zero
	Steps int     `json:"steps"`
}

// BoundsRow is one model's forward bounds forecast from the full history.
type BoundsRow struct {
	Model    string      `json:"model"`
	Dates    []time.Time `json:"dates"`
	Lower    []float64   `json:"lower"`
	Forecast []float64   `json:"forecast"`
	Upper    []float64   `json:"upper"`
}

// Response is the backtest result contract. Models that failed are omitted
// from Metrics and annotated in Failures.
type Response struct {
	Symbol        string            `json:"symbol"`
	Interval      domain.Interval   `json:"interval"`
	LastN         int               `json:"last_n"`
	BoundsHorizon int               `json:"bounds_horizon"`
	Metrics       []MetricRow       `json:"metrics"`
	Bounds        []BoundsRow       `json:"bounds"`
	Failures      map[string]string `json:"failures,omitempty"`
}

// Evaluator runs walk-forward backtests, one model per pool task.
type Evaluator struct {
	source   domain.PriceSource
	registry *forecast.Registry
	pool     *workers.Pool
	log      zerolog.Logger
}

// NewEvaluator creates a new backtest evaluator.
func NewEvaluator(source domain.PriceSource, registry *forecast.Registry, pool *workers.Pool, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		source:   source,
		registry: registry,
		pool:     pool,
		log:      log.With().Str("component", "backtest").Logger(),
	}
}

// modelRun is one model's complete backtest outcome.
type modelRun struct {
	metrics MetricRow
	bounds  *BoundsRow
}

// Evaluate walks the last LastN origins: fit on history up to each origin,
// forecast one step, compare to the realized close. Models run concurrently;
// a failing model is dropped without affecting the others.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	history, err := e.source.GetSeries(req.Symbol, req.Interval, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", req.Symbol, err)
	}

	minFit := req.Interval.MinFitSamples()
	required := req.LastN + minFit
	if history.Len() < required {
		return nil, &domain.InsufficientHistoryError{
			Symbol:   req.Symbol,
			Required: required,
			Actual:   history.Len(),
		}
	}

	models := req.Models
	if len(models) == 0 {
		models = e.registry.Models()
	}
	opts := forecast.Options{
		LookbackWindow:  req.LookbackWindow,
		Epochs:          req.Epochs,
		ConfidenceLevel: req.ConfidenceLevel,
	}

	tasks := make([]workers.Task, len(models))
	for i, model := range models {
		model := model
		tasks[i] = workers.Task{
			Name: model,
			Fn: func(taskCtx context.Context) (interface{}, error) {
				return e.evaluateModel(taskCtx, model, opts, history, req)
			},
		}
	}

	resp := &Response{
		Symbol:        req.Symbol,
		Interval:      req.Interval,
		LastN:         req.LastN,
		BoundsHorizon: req.BoundsHorizon,
		Failures:      make(map[string]string),
	}
	for _, result := range e.pool.Run(ctx, tasks) {
		if result.Err != nil {
			e.log.Warn().Err(result.Err).Str("model", result.Name).Msg("Model dropped from backtest")
			resp.Failures[result.Name] = result.Err.Error()
			continue
		}
		run := result.Value.(*modelRun)
		resp.Metrics = append(resp.Metrics, run.metrics)
		if run.bounds != nil {
			resp.Bounds = append(resp.Bounds, *run.bounds)
		}
	}
	if len(resp.Failures) == 0 {
		resp.Failures = nil
	}
	return resp, nil
}

func (e *Evaluator) evaluateModel(ctx context.Context, model string, opts forecast.Options, history domain.PriceSeries, req Request) (*modelRun, error) {
	n := history.Len()
	var absErrors, sqErrors, pctErrors []float64

	for k := 0; k < req.LastN; k++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		trainEnd := n - req.LastN + k
		train := domain.PriceSeries{
			Symbol:   history.Symbol,
			Interval: history.Interval,
			Points:   history.Points[:trainEnd],
		}
		actual := history.Points[trainEnd].Close

		predicted, err := e.oneStep(ctx, model, opts, train)
		if err != nil {
			continue // a failed origin just shrinks the sample
		}

		diff := predicted - actual
		absErrors = append(absErrors, math.Abs(diff))
		sqErrors = append(sqErrors, diff*diff)
		if actual != 0 {
			pctErrors = append(pctErrors, math.Abs(diff/actual))
		} else {
			pctErrors = append(pctErrors, 0)
		}
	}

	steps := len(absErrors)
	if steps < minSuccessfulSteps {
		return nil, &domain.ModelFitError{
			Model:  model,
			Reason: fmt.Sprintf("only %d of %d walk-forward steps succeeded, need %d", steps, req.LastN, minSuccessfulSteps),
		}
	}

	run := &modelRun{
		metrics: MetricRow{
			Model: model,
			MAE:   mean(absErrors),
			RMSE:  math.Sqrt(mean(sqErrors)),
			MAPE:  mean(pctErrors) * 100,
			Steps: steps,
		},
	}

	if req.BoundsHorizon > 0 {
		bounds, err := e.boundsForecast(ctx, model, opts, history, req.BoundsHorizon)
		if err != nil {
			e.log.Debug().Err(err).Str("model", model).Msg("Bounds forecast failed; metrics kept")
		} else {
			run.bounds = bounds
		}
	}
	return run, nil
}

func (e *Evaluator) oneStep(ctx context.Context, model string, opts forecast.Options, train domain.PriceSeries) (float64, error) {
	forecaster, err := e.registry.New(model, opts)
	if err != nil {
		return 0, err
	}
	if err := forecaster.Fit(train); err != nil {
		return 0, err
	}
	result, err := forecaster.Forecast(ctx, 1)
	if err != nil {
		return 0, err
	}
	return result.PointForecast[0], nil
}

func (e *Evaluator) boundsForecast(ctx context.Context, model string, opts forecast.Options, history domain.PriceSeries, horizon int) (*BoundsRow, error) {
	forecaster, err := e.registry.New(model, opts)
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
	return &BoundsRow{
		Model:    model,
		Dates:    result.Dates,
		Lower:    result.LowerBound,
		Forecast: result.PointForecast,
		Upper:    result.UpperBound,
	}, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
