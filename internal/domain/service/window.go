package service

import (
	"math"
	"sort"
)

// rollingWindow keeps the last `size` values of a series with O(1) amortized
// min/max, running moments, and O(log n) rank counts.
//
// Min/max come from monotonic index deques. Moments are kept as float sums of
// (v - pivot) with pivot = first value, which keeps the squares small. Ranks
// use a Fenwick tree over the coordinate-compressed values of the whole series.
type rollingWindow struct {
	size   int
	values []int64

	start, end int // current window is values[start:end]

	minQ, maxQ []int // indices, values increasing / decreasing

	pivot float64
	sum   float64
	sumSq float64

	ranks []int // rank of values[i] among distinct values, 1-based
	tree  fenwick
}

func newRollingWindow(size int, values []int64) *rollingWindow {
	w := &rollingWindow{
		size:   size,
		values: values,
		minQ:   make([]int, 0, size),
		maxQ:   make([]int, 0, size),
	}
	if len(values) > 0 {
		w.pivot = float64(values[0])
	}

	distinct := append([]int64(nil), values...)
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })
	distinct = compact(distinct)

	w.ranks = make([]int, len(values))
	for i, v := range values {
		w.ranks[i] = sort.Search(len(distinct), func(k int) bool { return distinct[k] >= v }) + 1
	}
	w.tree = newFenwick(len(distinct))
	return w
}

func compact(sorted []int64) []int64 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// advance takes in the next value and evicts the oldest once the window is over size.
func (w *rollingWindow) advance() {
	i := w.end
	v := w.values[i]
	w.end++

	for len(w.minQ) > 0 && w.values[w.minQ[len(w.minQ)-1]] >= v {
		w.minQ = w.minQ[:len(w.minQ)-1]
	}
	w.minQ = append(w.minQ, i)
	for len(w.maxQ) > 0 && w.values[w.maxQ[len(w.maxQ)-1]] <= v {
		w.maxQ = w.maxQ[:len(w.maxQ)-1]
	}
	w.maxQ = append(w.maxQ, i)

	x := float64(v) - w.pivot
	w.sum += x
	w.sumSq += x * x
	w.tree.add(w.ranks[i], 1)

	if w.end-w.start > w.size {
		w.evict()
	}
}

func (w *rollingWindow) evict() {
	i := w.start
	w.start++

	if w.minQ[0] == i {
		w.minQ = w.minQ[1:]
	}
	if w.maxQ[0] == i {
		w.maxQ = w.maxQ[1:]
	}

	x := float64(w.values[i]) - w.pivot
	w.sum -= x
	w.sumSq -= x * x
	w.tree.add(w.ranks[i], -1)
}

func (w *rollingWindow) len() int { return w.end - w.start }

func (w *rollingWindow) min() int64 { return w.values[w.minQ[0]] }

func (w *rollingWindow) max() int64 { return w.values[w.maxQ[0]] }

func (w *rollingWindow) mean() float64 {
	return w.pivot + w.sum/float64(w.len())
}

// sampleStdDev uses Bessel's correction. Callers must check len() >= 2.
func (w *rollingWindow) sampleStdDev() float64 {
	n := float64(w.len())
	m2 := w.sumSq - w.sum*w.sum/n
	if m2 < 0 {
		m2 = 0
	}
	return math.Sqrt(m2 / (n - 1))
}

// rankOf counts window values strictly below and equal to values[i].
func (w *rollingWindow) rankOf(i int) (less, equal int) {
	r := w.ranks[i]
	below := w.tree.sum(r - 1)
	return below, w.tree.sum(r) - below
}

type fenwick []int

func newFenwick(n int) fenwick { return make(fenwick, n+1) }

func (f fenwick) add(i, delta int) {
	for ; i < len(f); i += i & -i {
		f[i] += delta
	}
}

func (f fenwick) sum(i int) int {
	s := 0
	for ; i > 0; i -= i & -i {
		s += f[i]
	}
	return s
}
