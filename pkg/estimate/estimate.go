// Package estimate fits Mallows model parameters to a sample of permutations.
//
// [Center] returns the Borda consensus, the maximum-likelihood center under
// Kendall-Tau. [Dispersion] recovers θ from the mean Kendall distance of the
// sample to a center by Newton-Raphson on the expected-distance equation.
// Neither function keeps state; both accept the population batches produced
// by package model.
package estimate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/matzehuels/mallows/pkg/metric"
	"github.com/matzehuels/mallows/pkg/perm"
)

// Newton-Raphson defaults used by [Dispersion].
const (
	DefaultInitialTheta  = 0.01
	DefaultTolerance     = 1e-5
	DefaultMaxIterations = 1000
)

// Center returns the Borda consensus of samples: items ordered by their mean
// (1-indexed) position across all rows. Ties keep the lower item first.
// An empty batch yields the identity of its width.
func Center(samples *perm.Batch) []int {
	n := samples.Width
	rows := samples.Len()
	if rows == 0 {
		return perm.Seq(n)
	}
	mean := make([]float64, n)
	for i := range rows {
		for pos, item := range samples.Row(i) {
			mean[item] += float64(pos + 1)
		}
	}
	for item := range mean {
		mean[item] /= float64(rows)
	}
	return perm.Argsort(mean)
}

// MeanDistance returns the mean Kendall-Tau distance between center and the
// rows of samples. It equals the summed per-position discordance rates
// relative to center.
func MeanDistance(samples *perm.Batch, center []int) float64 {
	rows := samples.Len()
	if rows == 0 {
		return 0
	}
	inv := perm.Inverse(center)
	w := make([]int, len(center))
	d := make([]float64, rows)
	for i := range rows {
		for pos, item := range samples.Row(i) {
			w[pos] = inv[item]
		}
		d[i] = float64(metric.Inversions(w))
	}
	return stat.Mean(d, nil)
}

// Dispersion returns the maximum-likelihood θ of a Mallows model centered at
// center for the given samples, using the default Newton-Raphson settings.
//
// The result is best effort: it may be negative, or large when every sample
// equals the center. It is always finite for n ≥ 2.
func Dispersion(samples *perm.Batch, center []int) float64 {
	n := len(center)
	if n < 2 {
		return 0
	}
	v := MeanDistance(samples, center)
	return NewtonRaphson(
		func(theta float64) float64 { return ExpectedDistance(theta, n) - v },
		func(theta float64) float64 { return ExpectedDistanceDerivative(theta, n) },
		DefaultInitialTheta, DefaultTolerance, DefaultMaxIterations,
	)
}

// ExpectedDistance returns E_θ[d(σ, σ₀)] for a Kendall-Tau Mallows model of
// size n:
//
//	(n−1)/(e^θ−1) − Σ_{k=2}^{n} k/(e^{kθ}−1)
func ExpectedDistance(theta float64, n int) float64 {
	val := float64(n-1) / math.Expm1(theta)
	for k := 2; k <= n; k++ {
		val -= float64(k) / math.Expm1(float64(k)*theta)
	}
	return val
}

// ExpectedDistanceDerivative is d/dθ of [ExpectedDistance].
func ExpectedDistanceDerivative(theta float64, n int) float64 {
	em1 := math.Expm1(theta)
	val := -float64(n-1) * math.Exp(theta) / (em1 * em1)
	for k := 2; k <= n; k++ {
		kt := float64(k) * theta
		// e^{kθ}/(e^{kθ}−1)² written to avoid overflowing the square.
		val += float64(k*k) / (math.Expm1(kt) * -math.Expm1(-kt))
	}
	return val
}

// NewtonRaphson iterates x ← x − f(x)/f'(x) from x0. It returns the next
// iterate as soon as |f(x)| < tol and the last iterate after maxIter steps.
// Iteration also stops early, returning the current x, when the step is
// undefined (f' zero or either value not finite).
func NewtonRaphson(f, fPrime func(float64) float64, x0, tol float64, maxIter int) float64 {
	x := x0
	for range maxIter {
		fx := f(x)
		d := fPrime(x)
		if d == 0 || !finite(d) || !finite(fx) {
			return x
		}
		next := x - fx/d
		if math.Abs(fx) < tol {
			return next
		}
		if !finite(next) {
			return x
		}
		x = next
	}
	return x
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
