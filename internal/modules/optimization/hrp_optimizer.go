package optimization

import (
	"fmt"
	"math"
)

// Linkage selects the cluster-distance rule for HRP.
type Linkage string

const (
	LinkageSingle  Linkage = "single"
	LinkageAverage Linkage = "average"
)

type clusterNode struct {
	left    *clusterNode
	right   *clusterNode
	leaves  []int
	minLeaf int
}

// HRP computes Hierarchical Risk Parity weights:
//  1. correlation distance d_ij = sqrt(0.5 * (1 - rho_ij))
//  2. agglomerative clustering with deterministic tie-breaks
//  3. quasi-diagonal asset order from the dendrogram
//  4. recursive bisection, splitting capital inversely to cluster variance
//
// No matrix inversion happens anywhere, so a singular covariance matrix
// (e.g. duplicated assets) is handled without special-casing.
func HRP(symbols []string, cov, corr [][]float64, linkage Linkage) (map[string]float64, error) {
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}
	if n == 1 {
		return map[string]float64{symbols[0]: 1.0}, nil
	}
	if len(cov) != n || len(corr) != n {
		return nil, fmt.Errorf("matrix size does not match %d symbols", n)
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			d := 0.5 * (1 - corr[i][j])
			if d < 0 {
				d = 0
			}
			dist[i][j] = math.Sqrt(d)
		}
	}

	if linkage == "" {
		linkage = LinkageSingle
	}
	root := buildDendrogram(dist, linkage)
	order := quasiDiagonalOrder(root)
	if len(order) != n {
		return nil, fmt.Errorf("invalid cluster order length %d", len(order))
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0
	}
	recursiveBisection(weights, cov, order)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("invalid HRP weight sum: %v", sum)
	}

	result := make(map[string]float64, n)
	for i, symbol := range symbols {
		result[symbol] = weights[i] / sum
	}
	return result, nil
}

func buildDendrogram(dist [][]float64, linkage Linkage) *clusterNode {
	n := len(dist)
	clusters := make([]*clusterNode, 0, n)
	for i := 0; i < n; i++ {
		clusters = append(clusters, &clusterNode{leaves: []int{i}, minLeaf: i})
	}

	for len(clusters) > 1 {
		bestI, bestJ := 0, 1
		bestD := clusterDistance(dist, clusters[0], clusters[1], linkage)

		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := clusterDistance(dist, clusters[i], clusters[j], linkage)
				if d < bestD || (d == bestD && pairLess(clusters[i], clusters[j], clusters[bestI], clusters[bestJ])) {
					bestD, bestI, bestJ = d, i, j
				}
			}
		}

		left, right := clusters[bestI], clusters[bestJ]
		if right.minLeaf < left.minLeaf {
			left, right = right, left
		}

		mergedLeaves := make([]int, 0, len(left.leaves)+len(right.leaves))
		mergedLeaves = append(mergedLeaves, left.leaves...)
		mergedLeaves = append(mergedLeaves, right.leaves...)

		merged := &clusterNode{
			left:    left,
			right:   right,
			leaves:  mergedLeaves,
			minLeaf: left.minLeaf,
		}

		next := make([]*clusterNode, 0, len(clusters)-1)
		for k := range clusters {
			if k == bestI || k == bestJ {
				continue
			}
			next = append(next, clusters[k])
		}
		clusters = append(next, merged)
	}

	return clusters[0]
}

// pairLess breaks distance ties by the (sorted) min leaves of the pair so
// the dendrogram is independent of slice iteration order.
func pairLess(a1, b1, a2, b2 *clusterNode) bool {
	x1, y1 := a1.minLeaf, b1.minLeaf
	if y1 < x1 {
		x1, y1 = y1, x1
	}
	x2, y2 := a2.minLeaf, b2.minLeaf
	if y2 < x2 {
		x2, y2 = y2, x2
	}
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}

func clusterDistance(dist [][]float64, a, b *clusterNode, linkage Linkage) float64 {
	switch linkage {
	case LinkageAverage:
		sum := 0.0
		count := 0
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				sum += dist[i][j]
				count++
			}
		}
		if count == 0 {
			return math.Inf(1)
		}
		return sum / float64(count)
	default: // single
		best := math.Inf(1)
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				if d := dist[i][j]; d < best {
					best = d
				}
			}
		}
		return best
	}
}

func quasiDiagonalOrder(node *clusterNode) []int {
	if node == nil {
		return nil
	}
	if node.left == nil && node.right == nil {
		return []int{node.leaves[0]}
	}
	left := quasiDiagonalOrder(node.left)
	right := quasiDiagonalOrder(node.right)
	return append(left, right...)
}

func recursiveBisection(weights []float64, cov [][]float64, order []int) {
	if len(order) <= 1 {
		return
	}
	split := len(order) / 2
	left := order[:split]
	right := order[split:]

	vLeft := clusterVariance(cov, left)
	vRight := clusterVariance(cov, right)

	alpha := 0.5
	if vLeft+vRight > 0 {
		alpha = 1.0 - vLeft/(vLeft+vRight)
	}
	alpha = math.Max(0.0, math.Min(1.0, alpha))

	for _, idx := range left {
		weights[idx] *= alpha
	}
	for _, idx := range right {
		weights[idx] *= 1.0 - alpha
	}

	recursiveBisection(weights, cov, left)
	recursiveBisection(weights, cov, right)
}

// clusterVariance is the variance of the inverse-variance portfolio within
// the cluster.
func clusterVariance(cov [][]float64, idxs []int) float64 {
	if len(idxs) == 0 {
		return 0.0
	}
	if len(idxs) == 1 {
		return math.Max(cov[idxs[0]][idxs[0]], 0.0)
	}

	const eps = 1e-12
	inv := make([]float64, len(idxs))
	sumInv := 0.0
	for k, i := range idxs {
		v := cov[i][i]
		if v < eps {
			v = eps
		}
		inv[k] = 1.0 / v
		sumInv += inv[k]
	}
	if sumInv <= 0 {
		return 0.0
	}
	for k := range inv {
		inv[k] /= sumInv
	}

	variance := 0.0
	for a, i := range idxs {
		for b, j := range idxs {
			variance += inv[a] * cov[i][j] * inv[b]
		}
	}
	return math.Max(variance, 0.0)
}
