package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"quantfolio/internal/domain"
)

func twoAssetInputs() Inputs {
	return Inputs{
		Symbols: []string{"A", "B"},
		Mu:      []float64{0.12, 0.08},
		Sigma: mat.NewSymDense(2, []float64{
			0.04, 0.01,
			0.01, 0.02,
		}),
		RiskFreeRate: 0.02,
	}
}

func threeAssetInputs() Inputs {
	return Inputs{
		Symbols: []string{"A", "B", "C"},
		Mu:      []float64{0.12, 0.08, 0.10},
		Sigma: mat.NewSymDense(3, []float64{
			0.04, 0.01, 0.005,
			0.01, 0.03, 0.008,
			0.005, 0.008, 0.025,
		}),
	}
}

func assertValidWeights(t *testing.T, symbols []string, weights map[string]float64) {
	t.Helper()
	require.Len(t, weights, len(symbols))
	sum := 0.0
	for _, symbol := range symbols {
		w := weights[symbol]
		assert.GreaterOrEqual(t, w, 0.0, "weights should be non-negative")
		assert.LessOrEqual(t, w, 1.0+1e-9, "weights should be <= 1")
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6, "weights should sum to 1")
}

func TestMeanVariance_MinVolatility(t *testing.T) {
	in := threeAssetInputs()

	weights, err := MeanVariance(in, ObjectiveMinVolatility, nil, nil)
	require.NoError(t, err)
	assertValidWeights(t, in.Symbols, weights)

	// Asset A has the highest variance, so it cannot dominate the
	// minimum-volatility allocation
	assert.Less(t, weights["A"], weights["B"]+weights["C"])
}

func TestMeanVariance_MinVolatilityBeatsEqualWeight(t *testing.T) {
	in := threeAssetInputs()

	weights, err := MeanVariance(in, ObjectiveMinVolatility, nil, nil)
	require.NoError(t, err)

	equal := map[string]float64{"A": 1.0 / 3, "B": 1.0 / 3, "C": 1.0 / 3}
	assert.LessOrEqual(t, Evaluate(in, weights).Volatility, Evaluate(in, equal).Volatility+1e-6)
}

func TestMeanVariance_MaxSharpe(t *testing.T) {
	in := twoAssetInputs()

	weights, err := MeanVariance(in, ObjectiveMaxSharpe, nil, nil)
	require.NoError(t, err)
	assertValidWeights(t, in.Symbols, weights)

	// The tangency portfolio must not be dominated by either single asset
	perf := Evaluate(in, weights)
	sharpeA := (0.12 - 0.02) / math.Sqrt(0.04)
	sharpeB := (0.08 - 0.02) / math.Sqrt(0.02)
	assert.GreaterOrEqual(t, perf.SharpeRatio+1e-4, math.Max(sharpeA, sharpeB))
}

func TestMeanVariance_EfficientReturnHitsTarget(t *testing.T) {
	in := twoAssetInputs()
	target := 0.10

	weights, err := MeanVariance(in, ObjectiveEfficientReturn, &target, nil)
	require.NoError(t, err)
	assertValidWeights(t, in.Symbols, weights)

	perf := Evaluate(in, weights)
	assert.InDelta(t, target, perf.ExpectedReturn, 0.01)
}

func TestMeanVariance_EfficientReturnInfeasibleTarget(t *testing.T) {
	in := twoAssetInputs()

	for _, target := range []float64{0.20, 0.01} {
		_, err := MeanVariance(in, ObjectiveEfficientReturn, &target, nil)
		require.Error(t, err)

		var infeasible *domain.InfeasibleTargetError
		require.ErrorAs(t, err, &infeasible)
		assert.Equal(t, "return", infeasible.Kind)
		assert.InDelta(t, 0.08, infeasible.Min, 1e-12)
		assert.InDelta(t, 0.12, infeasible.Max, 1e-12)
	}
}

func TestMeanVariance_EfficientRiskInfeasibleTarget(t *testing.T) {
	in := twoAssetInputs()

	target := 0.5 // well above the most volatile single asset (20%)
	_, err := MeanVariance(in, ObjectiveEfficientRisk, nil, &target)
	require.Error(t, err)

	var infeasible *domain.InfeasibleTargetError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, "volatility", infeasible.Kind)
}

func TestMeanVariance_EfficientRiskHitsTarget(t *testing.T) {
	in := twoAssetInputs()
	target := 0.17

	weights, err := MeanVariance(in, ObjectiveEfficientRisk, nil, &target)
	require.NoError(t, err)
	assertValidWeights(t, in.Symbols, weights)

	perf := Evaluate(in, weights)
	assert.InDelta(t, target, perf.Volatility, 0.02)
}

func TestMeanVariance_MissingTargets(t *testing.T) {
	in := twoAssetInputs()

	_, err := MeanVariance(in, ObjectiveEfficientReturn, nil, nil)
	assert.Error(t, err)

	_, err = MeanVariance(in, ObjectiveEfficientRisk, nil, nil)
	assert.Error(t, err)
}

func TestMeanVariance_TooFewAssets(t *testing.T) {
	in := Inputs{
		Symbols: []string{"A"},
		Mu:      []float64{0.1},
		Sigma:   mat.NewSymDense(1, []float64{0.04}),
	}
	_, err := MeanVariance(in, ObjectiveMinVolatility, nil, nil)
	assert.Error(t, err)
}

func TestParseObjective(t *testing.T) {
	for _, valid := range []string{
		"max_sharpe", "min_volatility", "efficient_return",
		"efficient_risk", "hierarchical_risk_parity",
	} {
		obj, err := ParseObjective(valid)
		require.NoError(t, err)
		assert.Equal(t, Objective(valid), obj)
	}

	_, err := ParseObjective("maximize_everything")
	assert.Error(t, err)
}
