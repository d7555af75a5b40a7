package domain

import (
	"errors"
	"fmt"
)

// ErrAssetNotFound is returned by repositories when a symbol has never been
// synced. An asset with no bars in the requested range is not an error.
var ErrAssetNotFound = errors.New("asset not found")

// InsufficientDataError reports a series too short for the requested
// computation at its interval.
type InsufficientDataError struct {
	Symbol   string
	Interval Interval
	Required int
	Actual   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s (%s): have %d observations, need %d",
		e.Symbol, e.Interval, e.Actual, e.Required)
}

// InvalidPriceError reports a non-positive or NaN close. Price gaps are never
// filled with zeros; a broken bar invalidates the whole series.
type InvalidPriceError struct {
	Symbol string
	Index  int
	Close  float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid close %v for %s at index %d", e.Close, e.Symbol, e.Index)
}

// InsufficientOverlapError reports that the timestamp intersection across a
// set of assets is too small for cross-asset estimation.
type InsufficientOverlapError struct {
	Symbols  []string
	Shared   int
	Required int
}

func (e *InsufficientOverlapError) Error() string {
	return fmt.Sprintf("only %d shared observations across %v, need %d",
		e.Shared, e.Symbols, e.Required)
}

// InfeasibleTargetError reports an optimization target outside the range
// attainable by any long-only combination of the given assets.
type InfeasibleTargetError struct {
	Kind   string // "return" or "volatility"
	Target float64
	Min    float64
	Max    float64
}

func (e *InfeasibleTargetError) Error() string {
	return fmt.Sprintf("target %s %.4f is infeasible: attainable range is [%.4f, %.4f]",
		e.Kind, e.Target, e.Min, e.Max)
}

// ModelFitError reports a forecast model that could not be fitted or queried.
type ModelFitError struct {
	Model  string
	Reason string
	Err    error
}

func (e *ModelFitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model %s failed: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("model %s failed: %s", e.Model, e.Reason)
}

func (e *ModelFitError) Unwrap() error { return e.Err }

// InsufficientHistoryError reports a backtest request that cannot cover the
// requested number of walk-forward origins.
type InsufficientHistoryError struct {
	Symbol   string
	Required int
	Actual   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d bars, walk-forward needs %d",
		e.Symbol, e.Actual, e.Required)
}
