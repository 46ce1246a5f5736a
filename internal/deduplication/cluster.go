package deduplication

import (
	"sort"
)

// ScoredPair is a candidate pair with its match probability
type ScoredPair struct {
	Left  int
	Right int
	Score float64
}

// chooseThreshold picks the score that maximizes the expected F-score with
// beta = recallWeight, treating each score as the probability of a true
// match. The result is clamped to [minThreshold, 1].
func chooseThreshold(scores []float64, recallWeight, minThreshold float64) float64 {
	if len(scores) == 0 {
		return minThreshold
	}
	sorted := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	expected := 0.0
	for _, s := range sorted {
		expected += s
	}
	if expected == 0 {
		return 1
	}

	beta2 := recallWeight * recallWeight
	best, bestF := sorted[0], -1.0
	truePositives := 0.0
	for i, s := range sorted {
		truePositives += s
		precision := truePositives / float64(i+1)
		recall := truePositives / expected
		denom := beta2*precision + recall
		if denom == 0 {
			continue
		}
		f := (1 + beta2) * precision * recall / denom
		if f > bestF {
			best, bestF = s, f
		}
	}
	return min(max(best, minThreshold), 1)
}

// unionFind groups record indices
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union keeps the smaller index as root
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}

// clusterPairs connects every pair scoring at least threshold and returns
// the components with more than one member. Clusters are ordered by their
// first member and members keep corpus order.
func clusterPairs(n int, pairs []ScoredPair, threshold float64) [][]int {
	u := newUnionFind(n)
	for _, p := range pairs {
		if p.Score >= threshold {
			u.union(p.Left, p.Right)
		}
	}
	groups := map[int][]int{}
	var roots []int
	for i := 0; i < n; i++ {
		r := u.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}
	var clusters [][]int
	for _, r := range roots {
		if len(groups[r]) > 1 {
			clusters = append(clusters, groups[r])
		}
	}
	return clusters
}
