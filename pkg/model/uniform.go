package model

import (
	"math/rand/v2"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/perm"
)

// Sampler draws permutations of a fixed size.
type Sampler interface {
	Sample() []int
	SampleN(count int) *perm.Batch
	Size() int
}

var (
	_ Sampler = (*Mallows)(nil)
	_ Sampler = (*Uniform)(nil)
)

// Uniform samples permutations of size n uniformly at random. It seeds the
// initial population of the optimizer.
type Uniform struct {
	n   int
	rng *rand.Rand
}

// NewUniform returns a uniform sampler over permutations of size n.
func NewUniform(n int, rng *rand.Rand) (*Uniform, error) {
	if n < 0 {
		return nil, errors.New(errors.ErrCodeInvalidModel, "permutation size must be nonnegative, got %d", n)
	}
	if rng == nil {
		return nil, errors.New(errors.ErrCodeInvalidModel, "random source is required")
	}
	return &Uniform{n: n, rng: rng}, nil
}

// Size returns the permutation size.
func (u *Uniform) Size() int { return u.n }

// Sample returns a uniformly random permutation.
func (u *Uniform) Sample() []int {
	return u.rng.Perm(u.n)
}

// SampleN returns count independent uniform permutations.
func (u *Uniform) SampleN(count int) *perm.Batch {
	out := perm.NewBatch(max(count, 0), u.n)
	for i := range out.Len() {
		row := out.Row(i)
		for j := range row {
			row[j] = j
		}
		u.rng.Shuffle(u.n, func(a, b int) { row[a], row[b] = row[b], row[a] })
	}
	return out
}
