package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertHRPWeights(t *testing.T, symbols []string, weights map[string]float64) {
	t.Helper()
	require.Len(t, weights, len(symbols))
	sum := 0.0
	for _, symbol := range symbols {
		w := weights[symbol]
		assert.Greater(t, w, 0.0, "HRP never zeroes out an asset")
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestHRP_IdenticalAssetsSplitEvenly(t *testing.T) {
	symbols := []string{"A", "B"}
	cov := [][]float64{
		{0.04, 0.04},
		{0.04, 0.04},
	}
	corr := [][]float64{
		{1, 1},
		{1, 1},
	}

	weights, err := HRP(symbols, cov, corr, LinkageSingle)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, weights["A"], 1e-12)
	assert.InDelta(t, 0.5, weights["B"], 1e-12)
}

func TestHRP_LowVarianceAssetGetsMore(t *testing.T) {
	symbols := []string{"A", "B"}
	cov := [][]float64{
		{0.09, 0.0},
		{0.0, 0.01},
	}
	corr := [][]float64{
		{1, 0},
		{0, 1},
	}

	weights, err := HRP(symbols, cov, corr, LinkageSingle)
	require.NoError(t, err)
	assertHRPWeights(t, symbols, weights)
	assert.Greater(t, weights["B"], weights["A"], "inverse-variance split favors the quieter asset")
	// With two disjoint leaves the split is exactly inverse-variance
	assert.InDelta(t, 0.9, weights["B"], 1e-9)
	assert.InDelta(t, 0.1, weights["A"], 1e-9)
}

func TestHRP_SingularCovariance(t *testing.T) {
	// Duplicated asset makes the matrix singular; HRP must not care
	symbols := []string{"A", "B", "C"}
	cov := [][]float64{
		{0.04, 0.04, 0.01},
		{0.04, 0.04, 0.01},
		{0.01, 0.01, 0.02},
	}
	corr := [][]float64{
		{1, 1, 0.35},
		{1, 1, 0.35},
		{0.35, 0.35, 1},
	}

	weights, err := HRP(symbols, cov, corr, LinkageSingle)
	require.NoError(t, err)
	assertHRPWeights(t, symbols, weights)
}

func TestHRP_AverageLinkage(t *testing.T) {
	symbols := []string{"A", "B", "C", "D"}
	cov := [][]float64{
		{0.04, 0.018, 0.002, 0.001},
		{0.018, 0.035, 0.001, 0.002},
		{0.002, 0.001, 0.05, 0.02},
		{0.001, 0.002, 0.02, 0.045},
	}
	corr := [][]float64{
		{1, 0.48, 0.04, 0.02},
		{0.48, 1, 0.02, 0.05},
		{0.04, 0.02, 1, 0.42},
		{0.02, 0.05, 0.42, 1},
	}

	single, err := HRP(symbols, cov, corr, LinkageSingle)
	require.NoError(t, err)
	assertHRPWeights(t, symbols, single)

	average, err := HRP(symbols, cov, corr, LinkageAverage)
	require.NoError(t, err)
	assertHRPWeights(t, symbols, average)
}

func TestHRP_Deterministic(t *testing.T) {
	symbols := []string{"A", "B", "C"}
	cov := [][]float64{
		{0.04, 0.01, 0.005},
		{0.01, 0.03, 0.008},
		{0.005, 0.008, 0.025},
	}
	corr := [][]float64{
		{1, 0.29, 0.16},
		{0.29, 1, 0.29},
		{0.16, 0.29, 1},
	}

	first, err := HRP(symbols, cov, corr, LinkageSingle)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := HRP(symbols, cov, corr, LinkageSingle)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestHRP_SingleAsset(t *testing.T) {
	weights, err := HRP([]string{"A"}, [][]float64{{0.04}}, [][]float64{{1}}, LinkageSingle)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 1.0}, weights)
}

func TestHRP_EmptyInput(t *testing.T) {
	_, err := HRP(nil, nil, nil, LinkageSingle)
	assert.Error(t, err)
}
