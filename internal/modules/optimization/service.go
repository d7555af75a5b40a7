package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/covariance"
	"quantfolio/internal/modules/returns"
	"quantfolio/internal/modules/risk"
)

// minSharedForOptimization is the estimator floor for a usable covariance:
// below this the matrix is too noisy to optimize against.
const minSharedForOptimization = 10

// riskConfidence is the confidence level for the reported downside metrics.
const riskConfidence = 0.95

// Service runs the full optimization pipeline: price history to returns,
// alignment, covariance estimation, solving, frontier and risk metrics.
type Service struct {
	source domain.PriceSource
	log    zerolog.Logger
}

// NewService creates a new optimization service.
func NewService(source domain.PriceSource, log zerolog.Logger) *Service {
	return &Service{
		source: source,
		log:    log.With().Str("component", "optimization").Logger(),
	}
}

// Optimize solves the requested objective and assembles the full response.
// The computation is a pure function of the request and the stored history.
func (s *Service) Optimize(req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	objective := Objective(req.Objective)

	series := make([]domain.ReturnSeries, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		prices, err := s.source.GetSeries(symbol, req.Interval, req.FromDate, req.ToDate)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", symbol, err)
		}
		rs, err := returns.Build(prices, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("returns for %s: %w", symbol, err)
		}
		series = append(series, rs)
	}

	aligned, err := covariance.Align(series)
	if err != nil {
		return nil, err
	}
	if len(aligned.Symbols) < 2 {
		return nil, fmt.Errorf("at least 2 symbols with overlapping history are required, got %d", len(aligned.Symbols))
	}
	if aligned.Shared() < minSharedForOptimization {
		return nil, &domain.InsufficientOverlapError{
			Symbols:  aligned.Symbols,
			Shared:   aligned.Shared(),
			Required: minSharedForOptimization,
		}
	}

	estimate := covariance.Estimate(aligned, req.Interval)
	inputs := Inputs{
		Symbols:      aligned.Symbols,
		Mu:           annualizedReturns(aligned, req.Interval),
		Sigma:        estimate.Matrix(),
		RiskFreeRate: req.RiskFreeRate,
	}

	var weights map[string]float64
	if objective == ObjectiveHRP {
		weights, err = HRP(aligned.Symbols, estimate.Covariance, estimate.Correlation, LinkageSingle)
	} else {
		weights, err = MeanVariance(inputs, objective, req.TargetReturn, req.TargetVolatility)
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("objective", req.Objective).
		Int("assets", len(aligned.Symbols)).
		Int("shared", aligned.Shared()).
		Msg("Optimization solved")

	return &Response{
		Objective:         req.Objective,
		Weights:           weights,
		Performance:       Evaluate(inputs, weights),
		EfficientFrontier: Frontier(inputs, req.NFrontierPoints),
		RiskMetrics:       risk.ComputePortfolioMetrics(aligned.Symbols, aligned.Returns, weights, riskConfidence),
		DataPointsUsed:    aligned.PointsUsed,
		SharedDataPoints:  aligned.Shared(),
		Excluded:          aligned.Excluded,
	}, nil
}

// annualizedReturns computes the compounded annual growth rate of each
// aligned return vector.
func annualizedReturns(aligned *covariance.Aligned, interval domain.Interval) []float64 {
	factor := interval.AnnualizationFactor()
	out := make([]float64, len(aligned.Returns))
	for i, vec := range aligned.Returns {
		growth := 1.0
		for _, r := range vec {
			growth *= 1 + r
		}
		if growth <= 0 {
			out[i] = -1
			continue
		}
		out[i] = math.Pow(growth, factor/float64(len(vec))) - 1
	}
	return out
}
