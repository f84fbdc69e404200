// Package perm provides permutation primitives and the flat population buffer
// used throughout the optimizer.
//
// A permutation of size n is a []int holding every value of [0, n) exactly
// once. Mallows sampling, parameter estimation and the Kendall-Tau metric all
// read a permutation as an ordering: p[position] = item. [Inverse] converts an
// ordering into the position of every item and back.
//
// # Populations
//
// [Batch] stores m permutations of the same size in one row-major buffer so
// that evaluation, selection and estimation can sweep the whole population
// without per-individual allocations:
//
//	pop := perm.NewBatch(50, 9)
//	for i := range pop.Len() {
//	    copy(pop.Row(i), perm.Seq(9))
//	}
//	parents := pop.Select([]int{3, 3, 7})
package perm
