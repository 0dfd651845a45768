package audit

import (
	"math"
	"sort"
)

// Jaccard returns |A∩B| / |A∪B| over the distinct ids of a and b,
// and 1.0 when both are empty.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, id := range a {
		setA[id] = true
	}
	setB := make(map[string]bool, len(b))
	for _, id := range b {
		setB[id] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	inter := 0
	for id := range setA {
		if setB[id] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(max(1, union))
}

// Spearman returns the Spearman rank correlation of x and y: the Pearson
// correlation of their average ranks. It returns 0 when either side has no
// rank variance or the lengths differ.
func Spearman(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	rx := averageRanks(x)
	ry := averageRanks(y)

	mx, my := mean(rx), mean(ry)
	var sxy, sxx, syy float64
	for i := range rx {
		dx, dy := rx[i]-mx, ry[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	denom := math.Sqrt(sxx * syy)
	if denom == 0 {
		return 0
	}
	return sxy / denom
}

// averageRanks assigns 1-based ranks, giving tied values the mean of the
// ranks they span.
func averageRanks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return v[idx[i]] < v[idx[j]] })

	ranks := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
