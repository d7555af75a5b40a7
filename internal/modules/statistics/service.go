package statistics

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/covariance"
	"quantfolio/internal/modules/returns"
	"quantfolio/internal/modules/risk"
)

// Request is the statistics request contract.
type Request struct {
	Symbols  []string        `json:"symbols"`
	Interval domain.Interval `json:"interval"`
	FromDate *time.Time      `json:"from_date,omitempty"`
	ToDate   *time.Time      `json:"to_date,omitempty"`
}

// Validate enforces the request-level constraints.
func (r *Request) Validate() error {
	if len(r.Symbols) < 2 || len(r.Symbols) > 10 {
		return fmt.Errorf("symbols must contain between 2 and 10 entries, got %d", len(r.Symbols))
	}
	if !r.Interval.Valid() {
		return fmt.Errorf("unsupported interval: %q", r.Interval)
	}
	return nil
}

// AssetUnit is the per-asset slot in the response: either the stats block or
// the error that kept this asset out, never both.
type AssetUnit struct {
	Stats *AssetStats `json:"stats,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Advanced is the cross-asset block computed over the shared window.
type Advanced struct {
	Symbols             []string           `json:"symbols"`
	CovarianceMatrix    [][]float64        `json:"covariance_matrix"`
	CorrelationMatrix   [][]float64        `json:"correlation_matrix"`
	BetaVsEqualWeighted map[string]float64 `json:"beta_vs_equal_weighted"`
}

// Response is the statistics result contract.
type Response struct {
	Assets           map[string]AssetUnit `json:"assets"`
	Advanced         *Advanced            `json:"advanced,omitempty"`
	DataPointsUsed   map[string]int       `json:"data_points_used,omitempty"`
	SharedDataPoints int                  `json:"shared_data_points,omitempty"`
}

// Service computes the per-asset and cross-asset statistics blocks.
type Service struct {
	source domain.PriceSource
	log    zerolog.Logger
}

// NewService creates a new statistics service.
func NewService(source domain.PriceSource, log zerolog.Logger) *Service {
	return &Service{
		source: source,
		log:    log.With().Str("component", "statistics").Logger(),
	}
}

// Compute evaluates statistics for every requested asset. Per-asset failures
// annotate that asset's slot without failing the batch; the advanced block
// is computed from whatever assets produced a return series.
func (s *Service) Compute(req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp := &Response{Assets: make(map[string]AssetUnit, len(req.Symbols))}
	var usable []domain.ReturnSeries

	for _, symbol := range req.Symbols {
		prices, err := s.source.GetSeries(symbol, req.Interval, req.FromDate, req.ToDate)
		if err != nil {
			resp.Assets[symbol] = AssetUnit{Error: err.Error()}
			continue
		}
		rs, err := returns.Build(prices, nil, nil)
		if err != nil {
			resp.Assets[symbol] = AssetUnit{Error: err.Error()}
			continue
		}
		usable = append(usable, rs)

		stats, err := Compute(rs)
		if err != nil {
			resp.Assets[symbol] = AssetUnit{Error: err.Error()}
			continue
		}
		resp.Assets[symbol] = AssetUnit{Stats: stats}
	}

	if len(usable) < 2 {
		return resp, nil
	}

	aligned, err := covariance.Align(usable)
	if err != nil {
		s.log.Warn().Err(err).Msg("Skipping advanced block: no usable overlap")
		return resp, nil
	}
	estimate := covariance.Estimate(aligned, req.Interval)

	resp.Advanced = &Advanced{
		Symbols:             estimate.Symbols,
		CovarianceMatrix:    estimate.Covariance,
		CorrelationMatrix:   estimate.Correlation,
		BetaVsEqualWeighted: risk.Betas(aligned.Symbols, aligned.Returns),
	}
	resp.DataPointsUsed = aligned.PointsUsed
	resp.SharedDataPoints = aligned.Shared()
	return resp, nil
}
