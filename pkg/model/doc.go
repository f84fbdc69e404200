// Package model implements probability models over permutations.
//
// [Mallows] is the exponential-family distribution
//
//	P(σ) = exp(-θ·d(σ₀, σ)) / Z(θ)
//
// with center σ₀, dispersion θ and the Kendall-Tau distance d. It exposes its
// normalization constant, the likelihood of any permutation and exact
// sampling by stage-wise categorical draws, either one permutation at a time
// or a whole batch. [Uniform] draws permutations uniformly at random and is
// what an optimizer uses before it has a population to learn from.
//
// # Example
//
//	rng := rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
//	m, err := model.NewMallows([]int{2, 0, 1, 3}, 1.5, nil, rng)
//	if err != nil {
//	    return err
//	}
//	offspring := m.SampleN(100)
//
// Samplers share the random source they were built with and are not safe for
// concurrent use.
package model
