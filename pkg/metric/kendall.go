// Package metric provides distances between permutations.
//
// The only metric implemented is Kendall-Tau: the number of item pairs that two
// orderings rank differently, which equals the minimum number of adjacent
// transpositions turning one ordering into the other.
package metric

// Metric measures the distance between two permutations of a fixed size.
type Metric interface {
	// Distance returns a nonnegative integer distance between p and q.
	Distance(p, q []int) int
	// Size returns the permutation size the metric was built for.
	Size() int
}

// KendallTau is the Kendall-Tau distance for permutations of size n.
// The zero value is usable for any size; n is informational.
type KendallTau struct {
	n int
}

// NewKendallTau returns a Kendall-Tau metric for permutations of size n.
func NewKendallTau(n int) KendallTau {
	return KendallTau{n: n}
}

// Size returns the permutation size.
func (k KendallTau) Size() int { return k.n }

// Distance relabels p by the inverse of q and counts, for every position i,
// the later positions holding a smaller value. O(n²).
func (k KendallTau) Distance(p, q []int) int {
	w := relabel(p, q)
	d := 0
	for i := range w {
		for j := i + 1; j < len(w); j++ {
			if w[j] < w[i] {
				d++
			}
		}
	}
	return d
}

// MergeDistance returns the same value as [KendallTau.Distance] using a
// merge-sort inversion count. O(n log n); preferable for large n.
func (k KendallTau) MergeDistance(p, q []int) int {
	return Inversions(relabel(p, q))
}

// relabel returns w with w[i] = q⁻¹[p[i]], the position in q of the item at
// position i of p.
func relabel(p, q []int) []int {
	qInv := make([]int, len(q))
	for i, v := range q {
		qInv[v] = i
	}
	w := make([]int, len(p))
	for i, v := range p {
		w[i] = qInv[v]
	}
	return w
}

// Inversions counts pairs i < j with seq[i] > seq[j]. seq is not modified.
func Inversions(seq []int) int {
	if len(seq) < 2 {
		return 0
	}
	buf := make([]int, len(seq))
	work := make([]int, len(seq))
	copy(work, seq)
	return mergeCount(work, buf)
}

func mergeCount(a, buf []int) int {
	if len(a) < 2 {
		return 0
	}
	mid := len(a) / 2
	count := mergeCount(a[:mid], buf[:mid]) + mergeCount(a[mid:], buf[mid:])

	i, j, k := 0, mid, 0
	for i < mid && j < len(a) {
		if a[j] < a[i] {
			// every remaining left element is greater than a[j]
			count += mid - i
			buf[k] = a[j]
			j++
		} else {
			buf[k] = a[i]
			i++
		}
		k++
	}
	k += copy(buf[k:], a[i:mid])
	copy(buf[k:], a[j:])
	copy(a, buf[:len(a)])
	return count
}
