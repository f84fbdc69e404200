package model

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/metric"
	"github.com/matzehuels/mallows/pkg/perm"
)

// thetaEpsilon is the dispersion below which the model is treated as uniform
// when computing partial sums, avoiding the 0/0 of the closed form.
const thetaEpsilon = 1e-12

// Mallows is a Mallows distribution over permutations of size n, centered at
// a permutation σ₀ with dispersion θ:
//
//	P(σ) = exp(-θ·d(σ₀, σ)) / Z(θ)
//
// θ > 0 concentrates mass near σ₀, θ = 0 is uniform and θ < 0 favors
// permutations far from σ₀. A Mallows value is immutable once constructed;
// the normalization constant, the per-stage partial sums and the per-stage
// categorical tables are computed once in [NewMallows].
//
// Sampling draws from the shared random source and is not safe for
// concurrent use.
type Mallows struct {
	center []int
	theta  float64
	metric metric.Metric

	logNorm float64
	logV    []float64
	stages  []distuv.Categorical
	rng     *rand.Rand
}

// NewMallows builds a Mallows model. center must be a valid permutation and
// theta must be finite. A nil metric defaults to Kendall-Tau of len(center).
// rng is the random source used by every draw.
func NewMallows(center []int, theta float64, m metric.Metric, rng *rand.Rand) (*Mallows, error) {
	if !perm.Valid(center) {
		return nil, errors.New(errors.ErrCodeInvalidPermutation, "center is not a permutation: %v", center)
	}
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return nil, errors.New(errors.ErrCodeInvalidModel, "dispersion must be finite, got %v", theta)
	}
	if rng == nil {
		return nil, errors.New(errors.ErrCodeInvalidModel, "random source is required")
	}
	if m == nil {
		m = metric.NewKendallTau(len(center))
	}

	n := len(center)
	mm := &Mallows{
		center: slices.Clone(center),
		theta:  theta,
		metric: m,
		rng:    rng,
	}

	// Stage j chooses among n-j remaining candidates; the final position is forced.
	stages := max(n-1, 0)
	mm.logV = make([]float64, stages)
	mm.stages = make([]distuv.Categorical, stages)
	for j := range stages {
		k := n - j
		mm.logV[j] = logPartialSum(theta, k)
		mm.logNorm += mm.logV[j]
		mm.stages[j] = distuv.NewCategorical(stageWeights(theta, k), rng)
	}
	return mm, nil
}

// Center returns a copy of the center permutation σ₀.
func (m *Mallows) Center() []int { return slices.Clone(m.center) }

// Theta returns the dispersion parameter.
func (m *Mallows) Theta() float64 { return m.theta }

// Size returns the permutation size n.
func (m *Mallows) Size() int { return len(m.center) }

// NormalizationConstant returns Z(θ) = ∏_{j=1}^{n-1} (1 − e^{−θ(n−j+1)}) / (1 − e^{−θ}).
// For θ = 0 this is n!. It may overflow to +Inf for large n and very negative θ;
// [Mallows.Probability] works in log space and is unaffected.
func (m *Mallows) NormalizationConstant() float64 {
	return math.Exp(m.logNorm)
}

// PartialSums returns V, the per-stage normalization terms (length n−1).
// V[j] = Σ_{r=0}^{n-j-1} e^{−θr}.
func (m *Mallows) PartialSums() []float64 {
	v := make([]float64, len(m.logV))
	for i, l := range m.logV {
		v[i] = math.Exp(l)
	}
	return v
}

// Probability returns the Mallows likelihood of sigma.
func (m *Mallows) Probability(sigma []int) float64 {
	d := m.metric.Distance(m.center, sigma)
	return math.Exp(-m.theta*float64(d) - m.logNorm)
}

// Sample draws one permutation.
//
// The draw builds the Lehmer-code ranking π stage by stage: at stage j a
// rank r is drawn with probability e^{−θr}/V[j] among the n−j remaining
// candidates, the r-th remaining candidate is placed at π[j] and removed. The
// last candidate fills π[n−1]. The sample is π mapped onto the center,
// σ[k] = σ₀[π[k]], so that d(σ, σ₀) equals the number of inversions of π.
func (m *Mallows) Sample() []int {
	n := len(m.center)
	sigma := make([]int, n)
	if n == 0 {
		return sigma
	}
	pool := perm.Seq(n)
	for j := range m.stages {
		r := int(m.stages[j].Rand())
		sigma[j] = m.center[pool[r]]
		pool = slices.Delete(pool, r, r+1)
	}
	sigma[n-1] = m.center[pool[0]]
	return sigma
}

// SampleN draws count independent permutations into a batch.
//
// The batch is filled stage-major: stage j draws one rank for every row
// before stage j+1 starts. Each row sees the same per-stage categorical
// distributions as [Mallows.Sample] and draws are independent, so both paths
// sample the same distribution without being bit-identical for a given seed.
func (m *Mallows) SampleN(count int) *perm.Batch {
	n := len(m.center)
	out := perm.NewBatch(count, n)
	if n == 0 || count <= 0 {
		return out
	}

	// pools holds the remaining candidates of every row; row i's live
	// candidates are pools[i*n : i*n+remaining].
	pools := make([]int, count*n)
	for i := range count {
		copy(pools[i*n:(i+1)*n], perm.Seq(n))
	}

	for j := range m.stages {
		remaining := n - j
		for i := range count {
			pool := pools[i*n : i*n+remaining]
			r := int(m.stages[j].Rand())
			out.Data[i*n+j] = m.center[pool[r]]
			copy(pool[r:], pool[r+1:])
		}
	}
	for i := range count {
		out.Data[i*n+n-1] = m.center[pools[i*n]]
	}
	return out
}

// stageWeights returns unnormalized weights e^{−θr} for r in [0, k), shifted
// by the largest exponent so that every finite θ yields finite weights with
// maximum 1.
func stageWeights(theta float64, k int) []float64 {
	w := make([]float64, k)
	shift := 0.0
	if theta < 0 {
		shift = -theta * float64(k-1)
	}
	for r := range w {
		w[r] = math.Exp(-theta*float64(r) - shift)
	}
	return w
}

// logPartialSum returns log Σ_{r=0}^{k-1} e^{−θr}.
func logPartialSum(theta float64, k int) float64 {
	switch {
	case k <= 0:
		return math.Inf(-1)
	case math.Abs(theta) < thetaEpsilon:
		return math.Log(float64(k))
	case theta > 0:
		// (1 − e^{−θk}) / (1 − e^{−θ})
		return math.Log(math.Expm1(-theta*float64(k)) / math.Expm1(-theta))
	default:
		// Factor out the largest term e^{−θ(k−1)} and sum in the positive direction.
		return -theta*float64(k-1) + logPartialSum(-theta, k)
	}
}
