// Package covariance aligns return series and estimates the sample
// covariance and correlation matrices shared by the optimizer and the risk
// metrics.
package covariance

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"quantfolio/internal/domain"
)

// Aligned holds return series restricted to the timestamp intersection of
// the included assets.
type Aligned struct {
	Symbols    []string       // included assets, request order preserved
	Timestamps []time.Time    // shared timestamps, ascending
	Returns    [][]float64    // Returns[i] aligned to Symbols[i]
	PointsUsed map[string]int // original observation count per asset
	Excluded   []string       // assets dropped for having no overlap
}

// Shared returns the intersection size.
func (a *Aligned) Shared() int { return len(a.Timestamps) }

// Result is the annualized covariance estimate over an aligned window.
type Result struct {
	Symbols     []string    `json:"symbols"`
	Covariance  [][]float64 `json:"covariance_matrix"`
	Correlation [][]float64 `json:"correlation_matrix"`
	Shared      int         `json:"shared_data_points"`
	PointsUsed  map[string]int `json:"data_points_used"`
	Excluded    []string    `json:"excluded,omitempty"`
}

// Align restricts the series to their shared timestamps. An asset that
// overlaps no other asset at all is excluded and reported rather than
// collapsing the intersection to zero.
func Align(series []domain.ReturnSeries) (*Aligned, error) {
	aligned := &Aligned{PointsUsed: make(map[string]int, len(series))}

	sets := make([]map[int64]float64, len(series))
	for i, rs := range series {
		aligned.PointsUsed[rs.Symbol] = rs.Len()
		sets[i] = make(map[int64]float64, rs.Len())
		for j, ts := range rs.Timestamps {
			sets[i][ts.Unix()] = rs.Values[j]
		}
	}

	included := make([]int, 0, len(series))
	for i := range series {
		if overlapsAny(sets, i) {
			included = append(included, i)
		} else {
			aligned.Excluded = append(aligned.Excluded, series[i].Symbol)
		}
	}

	// Intersection of timestamps across the included assets.
	var sharedKeys []int64
	for k := range firstSet(sets, included) {
		inAll := true
		for _, i := range included {
			if _, ok := sets[i][k]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			sharedKeys = append(sharedKeys, k)
		}
	}
	sort.Slice(sharedKeys, func(a, b int) bool { return sharedKeys[a] < sharedKeys[b] })

	symbols := make([]string, 0, len(included))
	for _, i := range included {
		symbols = append(symbols, series[i].Symbol)
	}
	if len(sharedKeys) < 2 {
		return nil, &domain.InsufficientOverlapError{
			Symbols:  symbols,
			Shared:   len(sharedKeys),
			Required: 2,
		}
	}

	aligned.Symbols = symbols
	aligned.Timestamps = make([]time.Time, len(sharedKeys))
	for i, k := range sharedKeys {
		aligned.Timestamps[i] = time.Unix(k, 0).UTC()
	}
	aligned.Returns = make([][]float64, len(included))
	for row, i := range included {
		vec := make([]float64, len(sharedKeys))
		for col, k := range sharedKeys {
			vec[col] = sets[i][k]
		}
		aligned.Returns[row] = vec
	}
	return aligned, nil
}

// Estimate computes the annualized sample covariance over the aligned window
// (mean-centered cross products averaged over the window length) and the
// Pearson correlation derived from it.
func Estimate(aligned *Aligned, interval domain.Interval) *Result {
	n := len(aligned.Symbols)
	t := aligned.Shared()
	factor := interval.AnnualizationFactor()

	means := make([]float64, n)
	for i, vec := range aligned.Returns {
		var sum float64
		for _, v := range vec {
			sum += v
		}
		means[i] = sum / float64(t)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum float64
			for k := 0; k < t; k++ {
				sum += (aligned.Returns[i][k] - means[i]) * (aligned.Returns[j][k] - means[j])
			}
			c := sum / float64(t) * factor
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][j] = 1
				continue
			}
			denom := math.Sqrt(cov[i][i] * cov[j][j])
			if denom == 0 {
				corr[i][j] = 0
				continue
			}
			corr[i][j] = clamp(cov[i][j]/denom, -1, 1)
		}
	}

	return &Result{
		Symbols:     aligned.Symbols,
		Covariance:  cov,
		Correlation: corr,
		Shared:      t,
		PointsUsed:  aligned.PointsUsed,
		Excluded:    aligned.Excluded,
	}
}

// Matrix returns the covariance as a gonum symmetric matrix.
func (r *Result) Matrix() *mat.SymDense {
	n := len(r.Symbols)
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.SetSym(i, j, r.Covariance[i][j])
		}
	}
	return m
}

// overlapsAny reports whether asset i shares at least one timestamp with any
// other asset.
func overlapsAny(sets []map[int64]float64, i int) bool {
	if len(sets) == 1 {
		return true
	}
	for j := range sets {
		if j == i {
			continue
		}
		small, large := sets[i], sets[j]
		if len(large) < len(small) {
			small, large = large, small
		}
		for k := range small {
			if _, ok := large[k]; ok {
				return true
			}
		}
	}
	return false
}

func firstSet(sets []map[int64]float64, included []int) map[int64]float64 {
	if len(included) == 0 {
		return nil
	}
	return sets[included[0]]
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
