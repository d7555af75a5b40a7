package optimization

import (
	"math"
)

// Performance summarizes a weight allocation against mu and Sigma.
type Performance struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// FrontierPoint is one sampled portfolio on the efficient frontier.
type FrontierPoint struct {
	Volatility     float64 `json:"volatility"`
	ExpectedReturn float64 `json:"expected_return"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// DefaultFrontierPoints is the sample count when the request does not set one.
const DefaultFrontierPoints = 30

// Evaluate computes expected return, volatility and Sharpe ratio for the
// given weights.
func Evaluate(in Inputs, weights map[string]float64) Performance {
	w := make([]float64, len(in.Symbols))
	for i, symbol := range in.Symbols {
		w[i] = weights[symbol]
	}
	ret := dot(in.Mu, w)
	vol := math.Sqrt(math.Max(quadForm(in.Sigma, w), 0))

	sharpe := 0.0
	if vol > 0 {
		sharpe = (ret - in.RiskFreeRate) / vol
	}
	return Performance{ExpectedReturn: ret, Volatility: vol, SharpeRatio: sharpe}
}

// Frontier sweeps target returns from the minimum-volatility portfolio
// return up to the highest single-asset expected return, solving an
// efficient_return problem at each step. Infeasible or non-converging
// intermediate targets are skipped, as are solver artifacts that would break
// the non-decreasing volatility ordering, so the result may hold fewer than
// nPoints entries.
func Frontier(in Inputs, nPoints int) []FrontierPoint {
	if nPoints <= 0 {
		nPoints = DefaultFrontierPoints
	}

	minVolWeights, err := MeanVariance(in, ObjectiveMinVolatility, nil, nil)
	if err != nil {
		return nil
	}
	anchor := Evaluate(in, minVolWeights)

	maxRet := in.Mu[0]
	for _, m := range in.Mu[1:] {
		maxRet = math.Max(maxRet, m)
	}
	if maxRet <= anchor.ExpectedReturn {
		return []FrontierPoint{{
			Volatility:     anchor.Volatility,
			ExpectedReturn: anchor.ExpectedReturn,
			SharpeRatio:    anchor.SharpeRatio,
		}}
	}

	points := make([]FrontierPoint, 0, nPoints)
	prevVol := math.Inf(-1)
	step := (maxRet - anchor.ExpectedReturn) / float64(nPoints-1)
	for i := 0; i < nPoints; i++ {
		target := anchor.ExpectedReturn + step*float64(i)
		weights, err := MeanVariance(in, ObjectiveEfficientReturn, &target, nil)
		if err != nil {
			continue
		}
		perf := Evaluate(in, weights)
		if perf.Volatility+1e-9 < prevVol {
			continue
		}
		points = append(points, FrontierPoint{
			Volatility:     math.Max(perf.Volatility, prevVol),
			ExpectedReturn: perf.ExpectedReturn,
			SharpeRatio:    perf.SharpeRatio,
		})
		prevVol = math.Max(perf.Volatility, prevVol)
	}
	return points
}
