package dataset

import (
	"fmt"
	"math"
	"sort"
)

// Partition is a subset of a Dataset. Index holds the originating row number of every
// row so that consumers can report stable identifiers.
type Partition struct {
	Index []int
	X     [][]float64
	Y     []float64
}

// Len returns the number of rows.
func (p Partition) Len() int {
	return len(p.Y)
}

// Rows selects rows of p by position.
func (p Partition) Rows(pos []int) Partition {
	out := Partition{
		Index: make([]int, len(pos)),
		X:     make([][]float64, len(pos)),
		Y:     make([]float64, len(pos)),
	}
	for i, j := range pos {
		out.Index[i] = p.Index[j]
		out.X[i] = p.X[j]
		out.Y[i] = p.Y[j]
	}
	return out
}

// Tail returns the last n rows (all rows when n exceeds the length).
func (p Partition) Tail(n int) Partition {
	if n > p.Len() {
		n = p.Len()
	}
	if n < 0 {
		n = 0
	}
	start := p.Len() - n
	return Partition{
		Index: p.Index[start:],
		X:     p.X[start:],
		Y:     p.Y[start:],
	}
}

// Column copies feature j out of every row.
func (p Partition) Column(j int) []float64 {
	col := make([]float64, len(p.X))
	for i, row := range p.X {
		col[i] = row[j]
	}
	return col
}

// All wraps a whole dataset as a partition.
func (d *Dataset) All() Partition {
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}
	return Partition{Index: idx, X: d.X, Y: d.Y}
}

// Split shuffles the dataset with seed and holds out ceil(testSize*n) rows for testing.
func Split(d *Dataset, testSize float64, seed uint64) (train, test Partition, err error) {
	n := d.Len()
	if testSize <= 0 || testSize >= 1 {
		return train, test, fmt.Errorf("dataset: test size must be in (0, 1), got %v", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return train, test, fmt.Errorf("%w: cannot split %d rows with test size %v", ErrTooFewSamples, n, testSize)
	}

	perm := newRand(seed, 0x73706c).Perm(n)
	all := d.All()
	return all.Rows(perm[nTest:]), all.Rows(perm[:nTest]), nil
}

// Fold is one train/validation assignment of a k-fold split, expressed as row positions.
type Fold struct {
	Train      []int
	Validation []int
}

// KFold shuffles n positions with seed and partitions them into k folds. The first n%k
// folds get one extra row.
func KFold(n, k int, seed uint64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("dataset: k-fold needs k >= 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: cannot make %d folds from %d rows", ErrTooFewSamples, k, n)
	}

	perm := newRand(seed, 0x6b666f).Perm(n)
	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		val := append([]int(nil), perm[start:start+size]...)
		train := make([]int, 0, n-size)
		train = append(train, perm[:start]...)
		train = append(train, perm[start+size:]...)
		folds[f] = Fold{Train: train, Validation: val}
		start += size
	}
	return folds, nil
}

// SampleRows picks min(k, n) distinct positions out of n, deterministically for seed.
func SampleRows(n, k int, seed uint64) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	perm := newRand(seed, 0x626b67).Perm(n)
	return perm[:k]
}

// Quantile returns the q-th quantile (0 <= q <= 1) of values using linear interpolation
// between closest ranks. NaN values are ignored; an empty input yields NaN.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	return QuantileSorted(sorted, q)
}

// QuantileSorted is Quantile for input already sorted ascending and free of NaN.
func QuantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	q = math.Min(math.Max(q, 0), 1)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
