package perm

import (
	"iter"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Seq returns a slice containing the sequence [0, 1, 2, ..., n-1].
// This is the identity permutation of size n.
//
// For n <= 0, Seq returns an empty slice.
func Seq(n int) []int {
	result := make([]int, max(n, 0))
	for i := range result {
		result[i] = i
	}
	return result
}

// All yields every permutation of [0, n) in lexicographic order, starting
// with the identity. Each yielded slice is a fresh copy. There are n!
// permutations, so All is meant for exhaustive checks on small n.
func All(n int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		p := Seq(n)
		for {
			if !yield(slices.Clone(p)) || !Next(p) {
				return
			}
		}
	}
}

// Next rearranges p into its lexicographic successor and reports whether
// there was one. The last permutation (descending order) is left unchanged.
func Next(p []int) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	slices.Reverse(p[i+1:])
	return true
}

// Valid reports whether p is a bijection on [0, len(p)).
func Valid(p []int) bool {
	seen := make([]bool, len(p))
	for _, v := range p {
		if v < 0 || v >= len(p) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Inverse returns the inverse permutation q with q[p[i]] = i.
// If p holds positions of items, the inverse holds the item at each position,
// and vice versa. p must be valid; Inverse does not check.
func Inverse(p []int) []int {
	inv := make([]int, len(p))
	for i, v := range p {
		inv[v] = i
	}
	return inv
}

// InverseInto writes the inverse of p into dst, which must have len(p).
func InverseInto(dst, p []int) {
	for i, v := range p {
		dst[v] = i
	}
}

// Compose returns a∘b, the permutation c with c[i] = a[b[i]].
// a and b must have the same length.
func Compose(a, b []int) []int {
	c := make([]int, len(b))
	for i, v := range b {
		c[i] = a[v]
	}
	return c
}

// Argsort returns the indices that sort values ascending. The sort is stable:
// equal values keep their original relative order, so the lower index wins ties.
// values is not modified.
func Argsort(values []float64) []int {
	sorted := slices.Clone(values)
	inds := make([]int, len(values))
	floats.ArgsortStable(sorted, inds)
	return inds
}

// Move relocates the element at position from to position to, shifting the
// elements in between by one place. It is a single-element shift, not a swap:
//
//	Move([a b c d e], 1, 3) => [a c d b e]
//	Move([a b c d e], 3, 0) => [d a b c e]
//
// Positions outside the slice leave p unchanged.
func Move(p []int, from, to int) {
	if from == to || from < 0 || to < 0 || from >= len(p) || to >= len(p) {
		return
	}
	v := p[from]
	if from < to {
		copy(p[from:to], p[from+1:to+1])
	} else {
		copy(p[to+1:from+1], p[to:from])
	}
	p[to] = v
}
