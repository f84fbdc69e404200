package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/metric"
	"github.com/matzehuels/mallows/pkg/perm"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
}

func TestNewMallowsValidation(t *testing.T) {
	tests := []struct {
		name   string
		center []int
		theta  float64
		code   errors.Code
	}{
		{"not a permutation", []int{0, 0, 1}, 1, errors.ErrCodeInvalidPermutation},
		{"out of range", []int{0, 3, 1}, 1, errors.ErrCodeInvalidPermutation},
		{"nan theta", []int{0, 1, 2}, math.NaN(), errors.ErrCodeInvalidModel},
		{"inf theta", []int{0, 1, 2}, math.Inf(1), errors.ErrCodeInvalidModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMallows(tt.center, tt.theta, nil, newRand(1))
			if !errors.Is(err, tt.code) {
				t.Fatalf("NewMallows() error = %v, want code %s", err, tt.code)
			}
		})
	}

	if _, err := NewMallows([]int{0, 1}, 1, nil, nil); !errors.Is(err, errors.ErrCodeInvalidModel) {
		t.Fatalf("nil rng: error = %v", err)
	}
}

func TestNormalizationConstant(t *testing.T) {
	tests := []struct {
		n     int
		theta float64
	}{
		{1, 0.7}, {3, 0}, {4, 0.5}, {5, 1e-13}, {5, 2.0}, {5, -0.8}, {6, -3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/theta=%g", tt.n, tt.theta), func(t *testing.T) {
			m, err := NewMallows(perm.Seq(tt.n), tt.theta, nil, newRand(1))
			if err != nil {
				t.Fatal(err)
			}
			// Brute force: Z = Σ_σ exp(-θ d(σ₀, σ)).
			k := metric.NewKendallTau(tt.n)
			want, total := 0.0, 0.0
			for p := range perm.All(tt.n) {
				want += math.Exp(-tt.theta * float64(k.Distance(perm.Seq(tt.n), p)))
				total += m.Probability(p)
			}
			if got := m.NormalizationConstant(); math.Abs(got-want) > 1e-9*want {
				t.Errorf("NormalizationConstant() = %v, want %v", got, want)
			}
			if math.Abs(total-1) > 1e-9 {
				t.Errorf("probabilities sum to %v, want 1", total)
			}
		})
	}
}

func TestUniformNormalizationIsFactorial(t *testing.T) {
	m, err := NewMallows(perm.Seq(6), 0, nil, newRand(1))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.NormalizationConstant(); math.Abs(got-720) > 1e-9 {
		t.Errorf("Z(0) = %v, want 720", got)
	}
	for j, v := range m.PartialSums() {
		if want := float64(6 - j); math.Abs(v-want) > 1e-12 {
			t.Errorf("V[%d] = %v, want %v", j, v, want)
		}
	}
}

func TestProbabilityMode(t *testing.T) {
	center := []int{3, 1, 0, 2}
	m, err := NewMallows(center, 1.2, nil, newRand(1))
	if err != nil {
		t.Fatal(err)
	}
	pc := m.Probability(center)
	for p := range perm.All(4) {
		if fmt.Sprint(p) == fmt.Sprint(center) {
			continue
		}
		if m.Probability(p) >= pc {
			t.Fatalf("P(%v) = %v >= P(center) = %v", p, m.Probability(p), pc)
		}
	}
}

func TestSampleIsPermutation(t *testing.T) {
	m, err := NewMallows([]int{4, 2, 0, 1, 3, 5}, -0.5, nil, newRand(3))
	if err != nil {
		t.Fatal(err)
	}
	for range 200 {
		if s := m.Sample(); !perm.Valid(s) || len(s) != 6 {
			t.Fatalf("Sample() = %v is not a permutation", s)
		}
	}
	b := m.SampleN(200)
	if b.Len() != 200 {
		t.Fatalf("SampleN(200).Len() = %d", b.Len())
	}
	for i := range b.Len() {
		if !perm.Valid(b.Row(i)) {
			t.Fatalf("row %d = %v is not a permutation", i, b.Row(i))
		}
	}
}

func TestSampleConcentratesOnCenter(t *testing.T) {
	center := []int{2, 5, 0, 1, 4, 3, 6}
	m, err := NewMallows(center, 50, nil, newRand(9))
	if err != nil {
		t.Fatal(err)
	}
	for range 100 {
		if s := m.Sample(); fmt.Sprint(s) != fmt.Sprint(center) {
			t.Fatalf("Sample() = %v at θ=50, want center %v", s, center)
		}
	}
	b := m.SampleN(100)
	for i := range b.Len() {
		if fmt.Sprint(b.Row(i)) != fmt.Sprint(center) {
			t.Fatalf("SampleN row %d = %v, want center", i, b.Row(i))
		}
	}
}

func TestSampleSingleton(t *testing.T) {
	m, err := NewMallows([]int{0}, 3, nil, newRand(1))
	if err != nil {
		t.Fatal(err)
	}
	if s := m.Sample(); len(s) != 1 || s[0] != 0 {
		t.Fatalf("Sample() = %v, want [0]", s)
	}
	if b := m.SampleN(3); b.Len() != 3 {
		t.Fatalf("SampleN(3).Len() = %d", b.Len())
	}
	if z := m.NormalizationConstant(); z != 1 {
		t.Fatalf("Z = %v, want 1", z)
	}
}

// The empirical distribution of both sampling paths should match the
// analytic Mallows probabilities for a small n.
func TestSampleMatchesDistribution(t *testing.T) {
	const draws = 60000
	center := []int{1, 3, 0, 2}
	m, err := NewMallows(center, 0.6, nil, newRand(42))
	if err != nil {
		t.Fatal(err)
	}

	single := map[string]int{}
	for range draws {
		single[fmt.Sprint(m.Sample())]++
	}
	batched := map[string]int{}
	b := m.SampleN(draws)
	for i := range b.Len() {
		batched[fmt.Sprint(b.Row(i))]++
	}

	for p := range perm.All(4) {
		want := m.Probability(p)
		// 5 standard deviations of a binomial proportion.
		tol := 5 * math.Sqrt(want*(1-want)/draws)
		key := fmt.Sprint(p)
		if got := float64(single[key]) / draws; math.Abs(got-want) > tol {
			t.Errorf("Sample: freq(%v) = %.4f, want %.4f ± %.4f", p, got, want, tol)
		}
		if got := float64(batched[key]) / draws; math.Abs(got-want) > tol {
			t.Errorf("SampleN: freq(%v) = %.4f, want %.4f ± %.4f", p, got, want, tol)
		}
	}
}

func TestSampleNearUniform(t *testing.T) {
	const draws = 20000
	m, err := NewMallows(perm.Seq(5), 0, nil, newRand(5))
	if err != nil {
		t.Fatal(err)
	}
	// counts[pos][item]
	var counts [5][5]int
	b := m.SampleN(draws)
	for i := range b.Len() {
		for pos, item := range b.Row(i) {
			counts[pos][item]++
		}
	}
	for pos := range counts {
		for item, c := range counts[pos] {
			if f := float64(c) / draws; math.Abs(f-0.2) > 0.02 {
				t.Errorf("P(item %d at %d) = %.3f, want ≈ 0.2", item, pos, f)
			}
		}
	}
}

func TestExtremeDispersionStaysFinite(t *testing.T) {
	for _, theta := range []float64{-200, 200} {
		m, err := NewMallows(perm.Seq(30), theta, nil, newRand(1))
		if err != nil {
			t.Fatal(err)
		}
		s := m.Sample()
		if !perm.Valid(s) {
			t.Fatalf("θ=%v: Sample() = %v", theta, s)
		}
		if p := m.Probability(s); math.IsNaN(p) {
			t.Fatalf("θ=%v: Probability is NaN", theta)
		}
	}
}

func TestUniform(t *testing.T) {
	if _, err := NewUniform(-1, newRand(1)); !errors.Is(err, errors.ErrCodeInvalidModel) {
		t.Fatalf("NewUniform(-1) error = %v", err)
	}
	u, err := NewUniform(8, newRand(2))
	if err != nil {
		t.Fatal(err)
	}
	if s := u.Sample(); !perm.Valid(s) || len(s) != 8 {
		t.Fatalf("Sample() = %v", s)
	}
	b := u.SampleN(50)
	if b.Len() != 50 {
		t.Fatalf("SampleN(50).Len() = %d", b.Len())
	}
	distinct := map[string]bool{}
	for i := range b.Len() {
		if !perm.Valid(b.Row(i)) {
			t.Fatalf("row %d = %v", i, b.Row(i))
		}
		distinct[fmt.Sprint(b.Row(i))] = true
	}
	if len(distinct) < 40 {
		t.Errorf("only %d distinct rows out of 50", len(distinct))
	}
}
