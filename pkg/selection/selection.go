// Package selection maps a population's objective values to the indices of
// the individuals that parent the next generation.
//
// Every policy minimizes: smaller objective values are better. Deterministic
// [TopK] returns distinct indices; the stochastic policies draw with
// replacement from a categorical distribution built from the values and
// need a seeded random source:
//
//	rng := rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
//	p, err := selection.New("linear_ranking", rng, selection.DefaultParams())
//	idx, err := p.Select(objectives, 100)
package selection

import (
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/perm"
)

// Policy selects k indices into values.
type Policy interface {
	Select(values []float64, k int) ([]int, error)
	Name() string
}

// Policy names accepted by [New].
const (
	NameTopK               = "top_k"
	NameLinearRanking      = "linear_ranking"
	NameExponentialRanking = "exponential_ranking"
	NameAdaptationRoulette = "adaptation_roulette"
)

// Params holds the tunables of the parameterized policies.
type Params struct {
	// Alpha and Beta scale the probability of the worst and best individual
	// under linear ranking: worst gets Alpha/N, best gets Beta/N.
	Alpha float64 `toml:"alpha" yaml:"alpha" json:"alpha"`
	Beta  float64 `toml:"beta" yaml:"beta" json:"beta"`
}

// DefaultParams returns the linear ranking setting with the strongest
// selection pressure the constraints allow.
func DefaultParams() Params {
	return Params{Alpha: 0, Beta: 2}
}

// Names returns the canonical policy names, sorted.
func Names() []string {
	return []string{NameAdaptationRoulette, NameExponentialRanking, NameLinearRanking, NameTopK}
}

// New returns the policy registered under name. Names are case-insensitive
// and accept a "_selection" suffix, so "top_k_selection" resolves to top_k.
func New(name string, rng *rand.Rand, params Params) (Policy, error) {
	switch Canonical(name) {
	case NameTopK:
		return TopK{}, nil
	case NameLinearRanking:
		return NewLinearRanking(params.Alpha, params.Beta, rng)
	case NameExponentialRanking:
		return NewExponentialRanking(rng)
	case NameAdaptationRoulette:
		return NewAdaptationRoulette(rng)
	default:
		return nil, errors.New(errors.ErrCodeInvalidSelection,
			"unknown selection function %q (available: %s)", name, strings.Join(Names(), ", "))
	}
}

// Canonical normalizes a policy name.
func Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", "_")
	return strings.TrimSuffix(name, "_selection")
}

// TopK selects the k smallest values in ascending order, ties broken by index.
type TopK struct{}

func (TopK) Name() string { return NameTopK }

func (TopK) Select(values []float64, k int) ([]int, error) {
	if err := checkArgs(values, k); err != nil {
		return nil, err
	}
	if k > len(values) {
		return nil, errors.New(errors.ErrCodeInvalidSelection,
			"top_k cannot select %d of %d individuals", k, len(values))
	}
	return perm.Argsort(values)[:k], nil
}

// LinearRanking draws with probability linear in rank. Ranks run from 0 for
// the worst individual to N−1 for the best.
type LinearRanking struct {
	alpha, beta float64
	rng         *rand.Rand
}

// NewLinearRanking validates 0 ≤ alpha ≤ beta ≤ 2, alpha+beta ≤ 2 and beta > 0.
func NewLinearRanking(alpha, beta float64, rng *rand.Rand) (*LinearRanking, error) {
	if !(0 <= alpha && alpha <= beta && beta <= 2 && alpha+beta <= 2) {
		return nil, errors.New(errors.ErrCodeInvalidSelection,
			"linear ranking requires 0 <= alpha <= beta <= 2 and alpha+beta <= 2, got alpha=%g beta=%g", alpha, beta)
	}
	if beta == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSelection, "linear ranking requires beta > 0")
	}
	if rng == nil {
		return nil, errors.New(errors.ErrCodeInvalidSelection, "random source is required")
	}
	return &LinearRanking{alpha: alpha, beta: beta, rng: rng}, nil
}

func (*LinearRanking) Name() string { return NameLinearRanking }

func (l *LinearRanking) Select(values []float64, k int) ([]int, error) {
	if err := checkArgs(values, k); err != nil {
		return nil, err
	}
	n := len(values)
	if n == 1 {
		return make([]int, k), nil
	}
	ranks := Ranks(values)
	w := make([]float64, n)
	for i, r := range ranks {
		w[i] = (l.alpha + float64(r)/float64(n-1)*(l.beta-l.alpha)) / float64(n)
	}
	return draw(w, k, l.rng), nil
}

// ExponentialRanking draws with probability proportional to 1 − e^{−rank}.
// The worst individual has rank 0 and is never selected unless every weight
// vanishes.
type ExponentialRanking struct {
	rng *rand.Rand
}

func NewExponentialRanking(rng *rand.Rand) (*ExponentialRanking, error) {
	if rng == nil {
		return nil, errors.New(errors.ErrCodeInvalidSelection, "random source is required")
	}
	return &ExponentialRanking{rng: rng}, nil
}

func (*ExponentialRanking) Name() string { return NameExponentialRanking }

func (e *ExponentialRanking) Select(values []float64, k int) ([]int, error) {
	if err := checkArgs(values, k); err != nil {
		return nil, err
	}
	ranks := Ranks(values)
	w := make([]float64, len(values))
	for i, r := range ranks {
		w[i] = -math.Expm1(-float64(r))
	}
	return draw(w, k, e.rng), nil
}

// AdaptationRoulette draws with probability proportional to the gap between
// the worst value and each individual's value. When all values are equal
// every individual is equally likely.
type AdaptationRoulette struct {
	rng *rand.Rand
}

func NewAdaptationRoulette(rng *rand.Rand) (*AdaptationRoulette, error) {
	if rng == nil {
		return nil, errors.New(errors.ErrCodeInvalidSelection, "random source is required")
	}
	return &AdaptationRoulette{rng: rng}, nil
}

func (*AdaptationRoulette) Name() string { return NameAdaptationRoulette }

func (a *AdaptationRoulette) Select(values []float64, k int) ([]int, error) {
	if err := checkArgs(values, k); err != nil {
		return nil, err
	}
	worst := floats.Max(values)
	w := make([]float64, len(values))
	for i, v := range values {
		w[i] = worst - v
	}
	return draw(w, k, a.rng), nil
}

// Ranks returns each individual's rank: the number of individuals strictly
// after it in the stable best-first order, so the best has rank N−1 and the
// worst rank 0.
func Ranks(values []float64) []int {
	order := perm.Argsort(values)
	ranks := make([]int, len(values))
	for pos, idx := range order {
		ranks[idx] = len(values) - 1 - pos
	}
	return ranks
}

// draw samples k indices with replacement proportionally to w, falling back
// to uniform weights when w carries no mass.
func draw(w []float64, k int, rng *rand.Rand) []int {
	if sum := floats.Sum(w); !(sum > 0) || math.IsInf(sum, 0) {
		for i := range w {
			w[i] = 1
		}
	}
	c := distuv.NewCategorical(w, rng)
	out := make([]int, k)
	for i := range out {
		out[i] = int(c.Rand())
	}
	return out
}

func checkArgs(values []float64, k int) error {
	if len(values) == 0 {
		return errors.New(errors.ErrCodeInvalidSelection, "cannot select from an empty population")
	}
	if k < 0 {
		return errors.New(errors.ErrCodeInvalidSelection, "selection size must be nonnegative, got %d", k)
	}
	if slices.ContainsFunc(values, math.IsNaN) {
		return errors.New(errors.ErrCodeInvalidSelection, "objective values contain NaN")
	}
	return nil
}
