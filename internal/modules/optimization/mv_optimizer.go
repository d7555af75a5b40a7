// Package optimization solves portfolio weight-allocation problems over an
// annualized return vector and covariance matrix.
package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"quantfolio/internal/domain"
)

// Objective selects the optimization target.
type Objective string

const (
	ObjectiveMaxSharpe       Objective = "max_sharpe"
	ObjectiveMinVolatility   Objective = "min_volatility"
	ObjectiveEfficientReturn Objective = "efficient_return"
	ObjectiveEfficientRisk   Objective = "efficient_risk"
	ObjectiveHRP             Objective = "hierarchical_risk_parity"
)

// ParseObjective validates an objective string.
func ParseObjective(s string) (Objective, error) {
	switch Objective(s) {
	case ObjectiveMaxSharpe, ObjectiveMinVolatility, ObjectiveEfficientReturn,
		ObjectiveEfficientRisk, ObjectiveHRP:
		return Objective(s), nil
	}
	return "", fmt.Errorf("unknown optimization objective: %q", s)
}

// Inputs carries the estimates every objective works from. Mu and Sigma are
// annualized and ordered like Symbols.
type Inputs struct {
	Symbols      []string
	Mu           []float64
	Sigma        *mat.SymDense
	RiskFreeRate float64
}

// penaltyWeight scales the soft-constraint terms. Constraint residuals end
// up on the order of 1/penaltyWeight, well inside the weight-sum tolerance
// after the final normalization.
const penaltyWeight = 1000.0

// MeanVariance solves the requested mean-variance objective as a
// penalty-method unconstrained problem: long-only bounds via projection,
// the budget constraint and any target constraint as quadratic penalties.
// Targets are validated against the per-asset feasible range before
// solving; an out-of-range target is an error, never clipped.
func MeanVariance(in Inputs, objective Objective, targetReturn, targetVolatility *float64) (map[string]float64, error) {
	n := len(in.Symbols)
	if n < 2 {
		return nil, fmt.Errorf("mean-variance optimization needs at least 2 assets, got %d", n)
	}
	if len(in.Mu) != n {
		return nil, fmt.Errorf("expected returns length %d does not match %d symbols", len(in.Mu), n)
	}
	if r, _ := in.Sigma.Dims(); r != n {
		return nil, fmt.Errorf("covariance size %d does not match %d symbols", r, n)
	}

	switch objective {
	case ObjectiveEfficientReturn:
		if targetReturn == nil {
			return nil, fmt.Errorf("target_return required for efficient_return")
		}
		if err := validateTargetReturn(in, *targetReturn); err != nil {
			return nil, err
		}
		return solveEfficientReturn(in, *targetReturn)
	case ObjectiveMinVolatility:
		return solveMinVolatility(in)
	case ObjectiveMaxSharpe:
		return solveMaxSharpe(in)
	case ObjectiveEfficientRisk:
		if targetVolatility == nil {
			return nil, fmt.Errorf("target_volatility required for efficient_risk")
		}
		if err := validateTargetVolatility(in, *targetVolatility); err != nil {
			return nil, err
		}
		return solveEfficientRisk(in, *targetVolatility)
	default:
		return nil, fmt.Errorf("objective %q is not a mean-variance objective", objective)
	}
}

// validateTargetReturn checks the target against the span of individual
// asset expected returns, the attainable range for long-only weights.
func validateTargetReturn(in Inputs, target float64) error {
	lo, hi := in.Mu[0], in.Mu[0]
	for _, m := range in.Mu[1:] {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	if target < lo || target > hi {
		return &domain.InfeasibleTargetError{Kind: "return", Target: target, Min: lo, Max: hi}
	}
	return nil
}

// validateTargetVolatility checks the target against the span of individual
// asset volatilities.
func validateTargetVolatility(in Inputs, target float64) error {
	lo := math.Sqrt(in.Sigma.At(0, 0))
	hi := lo
	for i := 1; i < len(in.Mu); i++ {
		v := math.Sqrt(in.Sigma.At(i, i))
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if target < lo || target > hi {
		return &domain.InfeasibleTargetError{Kind: "volatility", Target: target, Min: lo, Max: hi}
	}
	return nil
}

func solveEfficientReturn(in Inputs, targetReturn float64) (map[string]float64, error) {
	n := len(in.Mu)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x)
			ret := dot(in.Mu, w)
			variance := quadForm(in.Sigma, w)

			obj := variance
			obj += sumPenalty(w)
			obj += penaltyWeight * (ret - targetReturn) * (ret - targetReturn)
			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x)
			ret := dot(in.Mu, w)

			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * in.Sigma.At(i, j) * w[j]
				}
			}
			addSumPenaltyGradient(grad, w)
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (ret - targetReturn) * in.Mu[i]
			}
		},
	}

	return solve(problem, in.Symbols)
}

func solveMinVolatility(in Inputs) (map[string]float64, error) {
	n := len(in.Mu)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x)
			return quadForm(in.Sigma, w) + sumPenalty(w)
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x)
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * in.Sigma.At(i, j) * w[j]
				}
			}
			addSumPenaltyGradient(grad, w)
		},
	}

	return solve(problem, in.Symbols)
}

func solveMaxSharpe(in Inputs) (map[string]float64, error) {
	n := len(in.Mu)
	rf := in.RiskFreeRate

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x)
			ret := dot(in.Mu, w)
			stdDev := math.Sqrt(math.Max(quadForm(in.Sigma, w), 1e-10))

			return -(ret-rf)/stdDev + sumPenalty(w)
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x)
			ret := dot(in.Mu, w)
			variance := quadForm(in.Sigma, w)
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * in.Sigma.At(i, j) * w[j]
				}
				grad[i] = -in.Mu[i]/stdDev + (ret-rf)*dVariance/(2*stdDev*stdDev*stdDev)
			}
			addSumPenaltyGradient(grad, w)
		},
	}

	return solve(problem, in.Symbols)
}

func solveEfficientRisk(in Inputs, targetVolatility float64) (map[string]float64, error) {
	n := len(in.Mu)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := projectToBounds(x)
			ret := dot(in.Mu, w)
			stdDev := math.Sqrt(math.Max(quadForm(in.Sigma, w), 1e-10))

			obj := -ret
			obj += sumPenalty(w)
			obj += penaltyWeight * (stdDev - targetVolatility) * (stdDev - targetVolatility)
			return obj
		},
		Grad: func(grad, x []float64) {
			w := projectToBounds(x)
			stdDev := math.Sqrt(math.Max(quadForm(in.Sigma, w), 1e-10))

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * in.Sigma.At(i, j) * w[j]
				}
				dStd := dVariance / (2 * stdDev)
				grad[i] = -in.Mu[i] + 2*penaltyWeight*(stdDev-targetVolatility)*dStd
			}
			addSumPenaltyGradient(grad, w)
		},
	}

	return solve(problem, in.Symbols)
}

// solve runs the minimizer with a BFGS first, Nelder-Mead fallback strategy,
// then projects, renormalizes and returns the weight map.
func solve(problem optimize.Problem, symbols []string) (map[string]float64, error) {
	n := len(symbols)
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !converged(result.Status) {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !converged(result.Status) {
			return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}

	xFinal := projectToBounds(result.X)
	sum := 0.0
	for _, w := range xFinal {
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("optimization produced a degenerate all-zero allocation")
	}

	weights := make(map[string]float64, n)
	for i, symbol := range symbols {
		weights[symbol] = xFinal[i] / sum
	}
	return weights, nil
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	}
	return false
}

// projectToBounds clamps each coordinate into the long-only [0, 1] box.
func projectToBounds(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(1, math.Max(0, v))
	}
	return out
}

func sumPenalty(w []float64) float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return penaltyWeight * (sum - 1.0) * (sum - 1.0)
}

func addSumPenaltyGradient(grad, w []float64) {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	for i := range grad {
		grad[i] += 2 * penaltyWeight * (sum - 1.0)
	}
}

func dot(a, b []float64) float64 {
	var out float64
	for i := range a {
		out += a[i] * b[i]
	}
	return out
}

func quadForm(sigma *mat.SymDense, w []float64) float64 {
	var out float64
	for i := range w {
		for j := range w {
			out += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return out
}
