// Package risk computes historical risk metrics on return series.
package risk

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// PortfolioMetrics holds the downside metrics reported with every
// optimization result.
type PortfolioMetrics struct {
	VaR95       float64 `json:"var_95"`
	CVaR95      float64 `json:"cvar_95"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// ValueAtRisk returns the historical VaR at the given confidence: the
// (1-confidence) quantile of the return distribution. The value is a return,
// so a loss shows up as a negative number.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return stat.Quantile(1-confidence, stat.LinInterp, sorted, nil)
}

// ConditionalValueAtRisk returns the mean of the returns at or below the VaR
// threshold. With an empty tail it degrades to the VaR itself.
func ConditionalValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	threshold := ValueAtRisk(returns, confidence)
	var sum float64
	var count int
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return threshold
	}
	return sum / float64(count)
}

// MaxDrawdown returns the largest peak-to-trough decline of the compounded
// wealth curve built from the returns. Always <= 0.
func MaxDrawdown(returns []float64) float64 {
	wealth := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		wealth *= 1 + r
		if wealth > peak {
			peak = wealth
		}
		if dd := wealth/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// PortfolioReturns collapses aligned per-asset returns into the weighted
// portfolio return series R_t = sum_i w_i * r_{i,t}. assetReturns[i] is the
// aligned return vector of symbols[i].
func PortfolioReturns(symbols []string, assetReturns [][]float64, weights map[string]float64) []float64 {
	if len(assetReturns) == 0 {
		return nil
	}
	n := len(assetReturns[0])
	out := make([]float64, n)
	for i, symbol := range symbols {
		w := weights[symbol]
		for t := 0; t < n; t++ {
			out[t] += w * assetReturns[i][t]
		}
	}
	return out
}

// ComputePortfolioMetrics evaluates VaR, CVaR and max drawdown for the
// weighted portfolio over the shared observation window.
func ComputePortfolioMetrics(symbols []string, assetReturns [][]float64, weights map[string]float64, confidence float64) PortfolioMetrics {
	series := PortfolioReturns(symbols, assetReturns, weights)
	return PortfolioMetrics{
		VaR95:       ValueAtRisk(series, confidence),
		CVaR95:      ConditionalValueAtRisk(series, confidence),
		MaxDrawdown: MaxDrawdown(series),
	}
}

// Betas regresses each asset against the equal-weighted basket of the same
// asset set and returns the slope per symbol. The basket is the natural
// benchmark when no external index series is stored.
func Betas(symbols []string, assetReturns [][]float64) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	if len(assetReturns) == 0 || len(assetReturns[0]) < 2 {
		return out
	}
	n := len(assetReturns[0])

	benchmark := make([]float64, n)
	for t := 0; t < n; t++ {
		var sum float64
		for i := range symbols {
			sum += assetReturns[i][t]
		}
		benchmark[t] = sum / float64(len(symbols))
	}

	benchVar := stat.Variance(benchmark, nil)
	for i, symbol := range symbols {
		if benchVar == 0 {
			out[symbol] = 0
			continue
		}
		cov := stat.Covariance(assetReturns[i], benchmark, nil)
		out[symbol] = cov / benchVar
	}
	return out
}
