package forecast

import (
	"context"
	"math"
	"sort"

	"quantfolio/internal/domain"
)

// residualLags is the number of residual and price lags fed to the boosted
// correction model.
const residualLags = 4

// minBoostRows is the smallest training set worth boosting on; below it the
// hybrid degrades to the plain trend model.
const minBoostRows = 10

// hybridForecaster is the trend_seasonal model with a gradient-boosted
// correction of the first step: boosted regression stumps learn the
// one-step-ahead trend residual from lagged residuals and prices. Steps 2+
// are pure trend forecasts, matching how quickly the residual signal decays.
type hybridForecaster struct {
	opts      Options
	trend     *trendSeasonalForecaster
	boost     *boostedStumps
	residuals []float64
	closes    []float64
	fitted    bool
}

func newHybrid(opts Options) *hybridForecaster {
	return &hybridForecaster{opts: opts, trend: newTrendSeasonal(opts)}
}

func (f *hybridForecaster) Name() string { return ModelHybrid }

func (f *hybridForecaster) Fit(history domain.PriceSeries) error {
	if err := f.trend.Fit(history); err != nil {
		if mfe, ok := err.(*domain.ModelFitError); ok {
			return &domain.ModelFitError{Model: f.Name(), Reason: mfe.Reason, Err: mfe.Err}
		}
		return err
	}

	closes := history.Closes()
	fitted := f.trend.fittedValues()
	residuals := make([]float64, len(closes))
	for i := range closes {
		residuals[i] = closes[i] - fitted[i]
	}

	f.closes = closes
	f.residuals = residuals
	f.fitted = true

	rows, targets := buildLagRows(residuals, closes)
	if len(rows) < minBoostRows {
		return nil
	}
	f.boost = fitBoostedStumps(rows, targets, 50, 0.1)
	return nil
}

func (f *hybridForecaster) Forecast(ctx context.Context, horizon int) (*Result, error) {
	result, err := f.trend.Forecast(ctx, horizon)
	if err != nil {
		return nil, err
	}
	result.Model = f.Name()

	if f.boost == nil {
		return result, nil
	}

	correction := f.boost.predict(lagFeatures(f.residuals, f.closes, len(f.closes)))
	result.PointForecast[0] += correction
	// Keep the interval invariant after shifting the point.
	result.LowerBound[0] = math.Min(result.LowerBound[0], result.PointForecast[0])
	result.UpperBound[0] = math.Max(result.UpperBound[0], result.PointForecast[0])
	return result, nil
}

func (f *hybridForecaster) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"display_name":     "Trend + boosted residual",
		"residual_lags":    residualLags,
		"boosted":          f.boost != nil,
		"confidence_level": f.opts.ConfidenceLevel,
		"is_fitted":        f.fitted,
	}
}

// buildLagRows produces one training row per time step t >= residualLags:
// features are the residual and price lags 1..L, target is residual[t].
func buildLagRows(residuals, closes []float64) ([][]float64, []float64) {
	var rows [][]float64
	var targets []float64
	for t := residualLags; t < len(residuals); t++ {
		rows = append(rows, lagFeatures(residuals, closes, t))
		targets = append(targets, residuals[t])
	}
	return rows, targets
}

// lagFeatures builds the feature vector for predicting step t.
func lagFeatures(residuals, closes []float64, t int) []float64 {
	features := make([]float64, 0, 2*residualLags)
	for lag := 1; lag <= residualLags; lag++ {
		features = append(features, residuals[t-lag])
	}
	for lag := 1; lag <= residualLags; lag++ {
		features = append(features, closes[t-lag])
	}
	return features
}

// stump is a depth-1 regression tree.
type stump struct {
	feature   int
	threshold float64
	leftVal   float64
	rightVal  float64
}

func (s stump) predict(x []float64) float64 {
	if x[s.feature] <= s.threshold {
		return s.leftVal
	}
	return s.rightVal
}

// boostedStumps is a small gradient-boosting ensemble with squared loss.
type boostedStumps struct {
	base         float64
	learningRate float64
	stumps       []stump
}

func fitBoostedStumps(rows [][]float64, targets []float64, rounds int, learningRate float64) *boostedStumps {
	n := len(targets)
	model := &boostedStumps{learningRate: learningRate}

	var sum float64
	for _, y := range targets {
		sum += y
	}
	model.base = sum / float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = model.base
	}

	grad := make([]float64, n)
	for round := 0; round < rounds; round++ {
		for i := range grad {
			grad[i] = targets[i] - pred[i]
		}
		s, ok := fitStump(rows, grad)
		if !ok {
			break
		}
		model.stumps = append(model.stumps, s)
		for i, row := range rows {
			pred[i] += learningRate * s.predict(row)
		}
	}
	return model
}

func (m *boostedStumps) predict(x []float64) float64 {
	out := m.base
	for _, s := range m.stumps {
		out += m.learningRate * s.predict(x)
	}
	return out
}

// fitStump finds the single split minimizing squared error against the
// targets. Returns ok=false when no split improves on a constant fit.
func fitStump(rows [][]float64, targets []float64) (stump, bool) {
	n := len(targets)
	numFeatures := len(rows[0])

	var total float64
	for _, y := range targets {
		total += y
	}
	bestSSE := math.Inf(1)
	var best stump
	found := false

	order := make([]int, n)
	for feature := 0; feature < numFeatures; feature++ {
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return rows[order[a]][feature] < rows[order[b]][feature]
		})

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += targets[order[k]]
			// Only split between distinct feature values.
			if rows[order[k]][feature] == rows[order[k+1]][feature] {
				continue
			}
			leftCount := float64(k + 1)
			rightCount := float64(n - k - 1)
			rightSum := total - leftSum

			// SSE decomposes so only the leaf means matter.
			sse := -(leftSum*leftSum/leftCount + rightSum*rightSum/rightCount)
			if sse < bestSSE {
				bestSSE = sse
				best = stump{
					feature:   feature,
					threshold: rows[order[k]][feature],
					leftVal:   leftSum / leftCount,
					rightVal:  rightSum / rightCount,
				}
				found = true
			}
		}
	}
	return best, found
}
