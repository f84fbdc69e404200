package eda

import (
	"math/rand/v2"

	"github.com/matzehuels/mallows/pkg/perm"
)

// Shake builds a population of size copies of best, each perturbed by moves
// random relocations: an element at a random position is moved to a random
// position at most window places away, clamped to the permutation bounds.
func Shake(best []int, size, moves, window int, rng *rand.Rand) *perm.Batch {
	n := len(best)
	out := perm.NewBatch(size, n)
	for i := range size {
		row := out.Row(i)
		copy(row, best)
		if n < 2 {
			continue
		}
		for range moves {
			from := rng.IntN(n)
			to := from + rng.IntN(2*window+1) - window
			to = min(max(to, 0), n-1)
			perm.Move(row, from, to)
		}
	}
	return out
}
