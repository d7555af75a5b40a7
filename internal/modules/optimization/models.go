package optimization

import (
	"fmt"
	"time"

	"quantfolio/internal/domain"
	"quantfolio/internal/modules/risk"
)

// Request is the optimization request contract.
type Request struct {
	Symbols          []string        `json:"symbols"`
	Interval         domain.Interval `json:"interval"`
	RiskFreeRate     float64         `json:"risk_free_rate"`
	FromDate         *time.Time      `json:"from_date,omitempty"`
	ToDate           *time.Time      `json:"to_date,omitempty"`
	Objective        string          `json:"objective"`
	TargetReturn     *float64        `json:"target_return,omitempty"`
	TargetVolatility *float64        `json:"target_volatility,omitempty"`
	NFrontierPoints  int             `json:"n_frontier_points"`
}

// Validate enforces the request-level constraints that fail the whole call.
func (r *Request) Validate() error {
	if len(r.Symbols) < 2 || len(r.Symbols) > 10 {
		return fmt.Errorf("symbols must contain between 2 and 10 entries, got %d", len(r.Symbols))
	}
	if !r.Interval.Valid() {
		return fmt.Errorf("unsupported interval: %q", r.Interval)
	}
	if _, err := ParseObjective(r.Objective); err != nil {
		return err
	}
	if Objective(r.Objective) == ObjectiveEfficientReturn && r.TargetReturn == nil {
		return fmt.Errorf("target_return required for efficient_return")
	}
	if Objective(r.Objective) == ObjectiveEfficientRisk && r.TargetVolatility == nil {
		return fmt.Errorf("target_volatility required for efficient_risk")
	}
	return nil
}

// Response is the optimization result contract.
type Response struct {
	Objective         string                `json:"objective"`
	Weights           map[string]float64    `json:"weights"`
	Performance       Performance           `json:"performance"`
	EfficientFrontier []FrontierPoint       `json:"efficient_frontier"`
	RiskMetrics       risk.PortfolioMetrics `json:"risk_metrics"`
	DataPointsUsed    map[string]int        `json:"data_points_used"`
	SharedDataPoints  int                   `json:"shared_data_points"`
	Excluded          []string              `json:"excluded,omitempty"`
}
