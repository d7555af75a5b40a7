package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAtRisk_KnownQuantile(t *testing.T) {
	// 20 returns: exactly one in the 5% tail
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = 0.01
	}
	returns[7] = -0.10

	v := ValueAtRisk(returns, 0.95)
	assert.Less(t, v, 0.0, "VaR should pick up the loss in the tail")
	assert.GreaterOrEqual(t, v, -0.10, "VaR cannot exceed the worst observation")
}

func TestValueAtRisk_EmptySeries(t *testing.T) {
	assert.Equal(t, 0.0, ValueAtRisk(nil, 0.95))
	assert.Equal(t, 0.0, ConditionalValueAtRisk(nil, 0.95))
}

func TestValueAtRisk_DoesNotMutateInput(t *testing.T) {
	returns := []float64{0.03, -0.02, 0.01, -0.05, 0.02}
	ValueAtRisk(returns, 0.95)
	assert.Equal(t, []float64{0.03, -0.02, 0.01, -0.05, 0.02}, returns)
}

func TestConditionalValueAtRisk_AtMostVaR(t *testing.T) {
	returns := []float64{0.02, 0.01, -0.01, -0.03, 0.015, -0.08, 0.005, 0.012, -0.02, 0.03,
		0.01, -0.015, 0.02, -0.04, 0.025, 0.008, -0.06, 0.018, 0.004, -0.01}

	v := ValueAtRisk(returns, 0.95)
	cv := ConditionalValueAtRisk(returns, 0.95)
	assert.LessOrEqual(t, cv, v, "CVaR is a tail mean and cannot be better than VaR")
}

func TestMaxDrawdown_KnownCurve(t *testing.T) {
	// Wealth: 1.0 -> 1.1 -> 0.88 -> 0.968; peak 1.1, trough 0.88
	returns := []float64{0.10, -0.20, 0.10}
	dd := MaxDrawdown(returns)
	assert.InDelta(t, -0.20, dd, 1e-12)
}

func TestMaxDrawdown_MonotonicGrowth(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.005, 0.03}
	assert.Equal(t, 0.0, MaxDrawdown(returns))
}

func TestMaxDrawdown_NeverPositive(t *testing.T) {
	returns := []float64{0.05, -0.01, 0.03, -0.07, 0.02}
	assert.LessOrEqual(t, MaxDrawdown(returns), 0.0)
}

func TestPortfolioReturns_WeightedSum(t *testing.T) {
	symbols := []string{"A", "B"}
	assetReturns := [][]float64{
		{0.10, -0.05},
		{0.02, 0.04},
	}
	weights := map[string]float64{"A": 0.6, "B": 0.4}

	series := PortfolioReturns(symbols, assetReturns, weights)
	require.Len(t, series, 2)
	assert.InDelta(t, 0.6*0.10+0.4*0.02, series[0], 1e-12)
	assert.InDelta(t, 0.6*-0.05+0.4*0.04, series[1], 1e-12)
}

func TestBetas_IdenticalAssetsHaveUnitBeta(t *testing.T) {
	// Both assets equal the benchmark exactly, so beta is 1 for each
	base := []float64{0.01, -0.02, 0.03, 0.005, -0.01, 0.02}
	symbols := []string{"A", "B"}
	assetReturns := [][]float64{base, base}

	betas := Betas(symbols, assetReturns)
	require.Len(t, betas, 2)
	assert.InDelta(t, 1.0, betas["A"], 1e-9)
	assert.InDelta(t, 1.0, betas["B"], 1e-9)
}

func TestBetas_LeveredAsset(t *testing.T) {
	base := []float64{0.01, -0.02, 0.03, 0.005, -0.01, 0.02}
	levered := make([]float64, len(base))
	for i, r := range base {
		levered[i] = 2 * r
	}
	symbols := []string{"A", "B"}
	betas := Betas(symbols, [][]float64{base, levered})

	// Benchmark is the average 1.5x series; slopes follow from scaling
	assert.InDelta(t, 1.0/1.5, betas["A"], 1e-9)
	assert.InDelta(t, 2.0/1.5, betas["B"], 1e-9)
}

func TestComputePortfolioMetrics_SingleAssetMatchesAssetMetrics(t *testing.T) {
	returns := []float64{0.02, -0.03, 0.01, -0.05, 0.04, 0.01, -0.02, 0.03}
	symbols := []string{"A"}
	weights := map[string]float64{"A": 1.0}

	m := ComputePortfolioMetrics(symbols, [][]float64{returns}, weights, 0.95)
	assert.InDelta(t, ValueAtRisk(returns, 0.95), m.VaR95, 1e-12)
	assert.InDelta(t, ConditionalValueAtRisk(returns, 0.95), m.CVaR95, 1e-12)
	assert.InDelta(t, MaxDrawdown(returns), m.MaxDrawdown, 1e-12)
}
