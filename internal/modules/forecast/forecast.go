// Package forecast provides interchangeable price forecasting models behind
// a single fit/forecast capability, plus a registry for dispatch by model key
// and a compare mode that fans the models out on a worker pool.
package forecast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"quantfolio/internal/domain"
)

// Model keys accepted by the registry.
const (
	ModelBaseline      = "baseline"
	ModelTrendSeasonal = "trend_seasonal"
	ModelRecurrent     = "recurrent"
	ModelFoundation    = "foundation"
	ModelHybrid        = "hybrid"
)

// Result is the common forecast output: point estimates with confidence
// bounds, all arrays exactly horizon long, lower <= point <= upper pointwise.
// A model without a native interval reports lower = upper = point.
type Result struct {
	Dates           []time.Time `json:"dates"`
	PointForecast   []float64   `json:"point_forecast"`
	LowerBound      []float64   `json:"lower_bound"`
	UpperBound      []float64   `json:"upper_bound"`
	ConfidenceLevel float64     `json:"confidence_level"`
	Model           string      `json:"model"`
}

// Forecaster is the capability every model variant implements. Fit validates
// and absorbs the history; Forecast extends it. Remote-backed variants do
// their network call inside Forecast, hence the context.
type Forecaster interface {
	Name() string
	Fit(history domain.PriceSeries) error
	Forecast(ctx context.Context, horizon int) (*Result, error)
	ModelInfo() map[string]interface{}
}

// Options carries the per-request tunables shared across variants. Zero
// values fall back to defaults.
type Options struct {
	Span            int     // baseline smoothing span
	LookbackWindow  int     // recurrent model sequence length
	Epochs          int     // recurrent model training epochs
	ConfidenceLevel float64
}

const (
	defaultSpan           = 10
	defaultLookbackWindow = 12
	defaultEpochs         = 30
	defaultConfidence     = 0.95
)

func (o Options) withDefaults() Options {
	if o.Span <= 0 {
		o.Span = defaultSpan
	}
	if o.LookbackWindow <= 0 {
		o.LookbackWindow = defaultLookbackWindow
	}
	if o.Epochs <= 0 {
		o.Epochs = defaultEpochs
	}
	if o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		o.ConfidenceLevel = defaultConfidence
	}
	return o
}

// Factory builds a fresh forecaster instance. Forecasters are single-use:
// one Fit, then Forecast.
type Factory func(opts Options) Forecaster

// Registry maps model keys to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry registers the five built-in variants. client may be nil;
// the remote-backed variants then fail with ModelFitError when invoked.
func DefaultRegistry(client *ModelClient) *Registry {
	r := NewRegistry()
	r.Register(ModelBaseline, func(opts Options) Forecaster { return newBaseline(opts) })
	r.Register(ModelTrendSeasonal, func(opts Options) Forecaster { return newTrendSeasonal(opts) })
	r.Register(ModelRecurrent, func(opts Options) Forecaster { return newRecurrent(client, opts) })
	r.Register(ModelFoundation, func(opts Options) Forecaster { return newFoundation(client, opts) })
	r.Register(ModelHybrid, func(opts Options) Forecaster { return newHybrid(opts) })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New instantiates the named model.
func (r *Registry) New(name string, opts Options) (Forecaster, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown forecast model: %q", name)
	}
	return factory(opts.withDefaults()), nil
}

// Models returns the registered model keys, sorted.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateHistory applies the shared fit preconditions: interval minimum
// sample count and strictly valid closes.
func validateHistory(model string, history domain.PriceSeries) error {
	required := history.Interval.MinFitSamples()
	if history.Len() < required {
		return &domain.ModelFitError{
			Model:  model,
			Reason: "insufficient history",
			Err: &domain.InsufficientDataError{
				Symbol:   history.Symbol,
				Interval: history.Interval,
				Required: required,
				Actual:   history.Len(),
			},
		}
	}
	for i, p := range history.Points {
		if p.Close <= 0 || p.Close != p.Close {
			return &domain.ModelFitError{
				Model:  model,
				Reason: "invalid price data",
				Err:    &domain.InvalidPriceError{Symbol: history.Symbol, Index: i, Close: p.Close},
			}
		}
	}
	return nil
}

// futureDates projects horizon bar timestamps past the end of the history.
func futureDates(history domain.PriceSeries, horizon int) []time.Time {
	out := make([]time.Time, horizon)
	t := history.Points[len(history.Points)-1].Timestamp
	for i := 0; i < horizon; i++ {
		t = history.Interval.Next(t)
		out[i] = t
	}
	return out
}

// zScore returns the two-sided normal quantile for the confidence level.
func zScore(confidence float64) float64 {
	normal := distuv.Normal{Mu: 0, Sigma: 1}
	return normal.Quantile(0.5 + confidence/2)
}
