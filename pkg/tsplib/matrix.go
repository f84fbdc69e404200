package tsplib

import (
	"math"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/perm"
)

// Matrix is a dense n×n distance matrix stored row-major.
type Matrix struct {
	n    int
	data []float64
}

// NewMatrix returns a zero n×n matrix.
func NewMatrix(n int) *Matrix {
	return &Matrix{n: n, data: make([]float64, n*n)}
}

// MatrixFromRows copies a square [][]float64 into a Matrix.
func MatrixFromRows(rows [][]float64) (*Matrix, error) {
	m := NewMatrix(len(rows))
	for i, row := range rows {
		if len(row) != m.n {
			return nil, errors.New(errors.ErrCodeInvalidProblem,
				"row %d has %d entries, want %d", i, len(row), m.n)
		}
		copy(m.data[i*m.n:], row)
	}
	return m, nil
}

// Size returns n.
func (m *Matrix) Size() int { return m.n }

// At returns the distance from i to j.
func (m *Matrix) At(i, j int) float64 { return m.data[i*m.n+j] }

// Set sets the distance from i to j.
func (m *Matrix) Set(i, j int, v float64) { m.data[i*m.n+j] = v }

// Rows returns a copy of the matrix as nested slices.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, m.n)
	for i := range out {
		out[i] = append([]float64(nil), m.data[i*m.n:(i+1)*m.n]...)
	}
	return out
}

// Data exposes the row-major backing slice. It is used for hashing and must
// not be modified.
func (m *Matrix) Data() []float64 { return m.data }

// Symmetric reports whether At(i, j) == At(j, i) for all i, j.
func (m *Matrix) Symmetric() bool {
	for i := range m.n {
		for j := i + 1; j < m.n; j++ {
			if m.At(i, j) != m.At(j, i) {
				return false
			}
		}
	}
	return true
}

// TourCost returns the cost of the closed cycle visiting tour in order and
// returning to tour[0]. tour is not validated; see [Matrix.ValidateTour].
func (m *Matrix) TourCost(tour []int) float64 {
	if len(tour) < 2 {
		return 0
	}
	var sum float64
	prev := tour[len(tour)-1]
	for _, c := range tour {
		sum += m.data[prev*m.n+c]
		prev = c
	}
	return sum
}

// ValidateTour checks that tour visits every city exactly once.
func (m *Matrix) ValidateTour(tour []int) error {
	if len(tour) != m.n || !perm.Valid(tour) {
		return errors.New(errors.ErrCodeInvalidPermutation,
			"tour must visit each of the %d cities exactly once", m.n)
	}
	return nil
}

// Objective returns a batched objective scoring each row as a closed tour.
func (m *Matrix) Objective() func(pop *perm.Batch) []float64 {
	return func(pop *perm.Batch) []float64 {
		out := make([]float64, pop.Len())
		for i := range out {
			out[i] = m.TourCost(pop.Row(i))
		}
		return out
	}
}

// =============================================================================
// Distance functions
// =============================================================================

// euclidean is the unrounded Euclidean distance.
func euclidean(a, b Coord) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ceilEuclidean is the Euclidean distance rounded up.
func ceilEuclidean(a, b Coord) float64 {
	return math.Ceil(euclidean(a, b))
}

// pseudoEuclidean is the ATT distance.
func pseudoEuclidean(a, b Coord) float64 {
	xd, yd := a.X-b.X, a.Y-b.Y
	r := math.Sqrt((xd*xd + yd*yd) / 10)
	t := math.Round(r)
	if t < r {
		t++
	}
	return t
}

const (
	geoPi     = 3.141592
	geoRadius = 6378.388
)

func geoRadians(x float64) float64 {
	deg := math.Trunc(x)
	minutes := x - deg
	return geoPi * (deg + 5.0*minutes/3.0) / 180.0
}

// geographical is the GEO great-circle distance in kilometers.
func geographical(a, b Coord) float64 {
	latA, lonA := geoRadians(a.X), geoRadians(a.Y)
	latB, lonB := geoRadians(b.X), geoRadians(b.Y)
	q1 := math.Cos(lonA - lonB)
	q2 := math.Cos(latA - latB)
	q3 := math.Cos(latA + latB)
	return math.Trunc(geoRadius*math.Acos(0.5*((1+q1)*q2-(1-q1)*q3)) + 1.0)
}

func matrixFromCoords(coords []Coord, dist func(a, b Coord) float64) *Matrix {
	n := len(coords)
	m := NewMatrix(n)
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := dist(coords[i], coords[j])
			m.Set(i, j, d)
			m.Set(j, i, d)
		}
	}
	return m
}
