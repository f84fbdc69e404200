package perm

import (
	"fmt"
	"slices"
)

// Batch is a population of equally sized permutations stored as one
// contiguous row-major buffer: row i occupies Data[i*Width : (i+1)*Width].
//
// Rows returned by [Batch.Row] alias the buffer. Mutating them mutates the batch.
type Batch struct {
	Width int
	Data  []int
}

// NewBatch allocates a zeroed batch of rows permutations of size width.
func NewBatch(rows, width int) *Batch {
	return &Batch{Width: width, Data: make([]int, rows*width)}
}

// BatchOf copies the given rows into a new batch. All rows must have the same
// length; BatchOf panics otherwise.
func BatchOf(rows ...[]int) *Batch {
	if len(rows) == 0 {
		return &Batch{}
	}
	b := &Batch{Width: len(rows[0]), Data: make([]int, 0, len(rows)*len(rows[0]))}
	for _, r := range rows {
		b.Append(r)
	}
	return b
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	if b == nil || b.Width == 0 {
		return 0
	}
	return len(b.Data) / b.Width
}

// Row returns a view of row i.
func (b *Batch) Row(i int) []int {
	return b.Data[i*b.Width : (i+1)*b.Width : (i+1)*b.Width]
}

// Rows returns views of every row.
func (b *Batch) Rows() [][]int {
	out := make([][]int, b.Len())
	for i := range out {
		out[i] = b.Row(i)
	}
	return out
}

// Append copies row onto the end of the batch. It panics when the row width
// does not match, since a ragged population is a programming error.
func (b *Batch) Append(row []int) {
	if b.Width == 0 && len(b.Data) == 0 {
		b.Width = len(row)
	}
	if len(row) != b.Width {
		panic(fmt.Sprintf("perm: row of width %d appended to batch of width %d", len(row), b.Width))
	}
	b.Data = append(b.Data, row...)
}

// Select returns a new batch holding copies of the rows at indices, in order.
// Indices may repeat.
func (b *Batch) Select(indices []int) *Batch {
	out := &Batch{Width: b.Width, Data: make([]int, 0, len(indices)*b.Width)}
	for _, i := range indices {
		out.Data = append(out.Data, b.Row(i)...)
	}
	return out
}

// Concat returns a new batch with the rows of b followed by the rows of other.
func (b *Batch) Concat(other *Batch) *Batch {
	if b.Len() > 0 && other.Len() > 0 && b.Width != other.Width {
		panic(fmt.Sprintf("perm: cannot concat batches of width %d and %d", b.Width, other.Width))
	}
	width := b.Width
	if width == 0 {
		width = other.Width
	}
	data := make([]int, 0, len(b.Data)+len(other.Data))
	data = append(data, b.Data...)
	data = append(data, other.Data...)
	return &Batch{Width: width, Data: data}
}

// Clone returns a deep copy of b.
func (b *Batch) Clone() *Batch {
	return &Batch{Width: b.Width, Data: slices.Clone(b.Data)}
}
