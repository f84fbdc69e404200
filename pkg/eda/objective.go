package eda

import "github.com/matzehuels/mallows/pkg/perm"

// Objective scores a batch of permutations, one value per row. Smaller is
// better. It must be deterministic and free of side effects the engine
// would observe.
type Objective func(pop *perm.Batch) []float64

// Anchored wraps an objective over full tours of n items so it scores
// permutations of the n−1 non-anchor items. Item 0 is the anchor: every row
// v is scored as the tour [0, v[0]+1, …, v[n−2]+1]. The wrapper reuses one
// buffer across calls and is not safe for concurrent use.
func Anchored(full Objective) Objective {
	var data []int
	return func(pop *perm.Batch) []float64 {
		rows, width := pop.Len(), pop.Width+1
		if need := rows * width; cap(data) < need {
			data = make([]int, need)
		}
		buf := &perm.Batch{Width: width, Data: data[:rows*width]}
		for i := range rows {
			dst, src := buf.Row(i), pop.Row(i)
			dst[0] = 0
			for j, v := range src {
				dst[j+1] = v + 1
			}
		}
		return full(buf)
	}
}

// Anchor returns the full tour for a non-anchor permutation p.
func Anchor(p []int) []int {
	t := make([]int, len(p)+1)
	for i, v := range p {
		t[i+1] = v + 1
	}
	return t
}

// Unanchor is the inverse of [Anchor]: it rotates tour so the anchor comes
// first, drops it and shifts the remaining items down by one.
func Unanchor(tour []int) []int {
	start := 0
	for i, v := range tour {
		if v == 0 {
			start = i
			break
		}
	}
	p := make([]int, 0, max(len(tour)-1, 0))
	for k := 1; k < len(tour); k++ {
		p = append(p, tour[(start+k)%len(tour)]-1)
	}
	return p
}
