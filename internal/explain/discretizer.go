package explain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"co2-forecast/internal/dataset"
)

// stdFloor keeps per-bin standard deviations strictly positive.
const stdFloor = 1e-11

// QuartileDiscretizer maps each continuous column to the bin between its training
// quartiles. A column with b distinct quartile boundaries has b+1 bins.
type QuartileDiscretizer struct {
	bounds [][]float64 // distinct quartiles per column, ascending
	names  [][]string  // per column, per bin

	// per column, per bin statistics of the training rows falling in the bin
	means, stds, mins, maxs [][]float64
}

// NewQuartileDiscretizer learns bin boundaries and statistics from data.
func NewQuartileDiscretizer(data [][]float64, names []string) (*QuartileDiscretizer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyBackground
	}
	nCols := len(names)
	d := &QuartileDiscretizer{
		bounds: make([][]float64, nCols),
		names:  make([][]string, nCols),
		means:  make([][]float64, nCols),
		stds:   make([][]float64, nCols),
		mins:   make([][]float64, nCols),
		maxs:   make([][]float64, nCols),
	}

	for j := 0; j < nCols; j++ {
		col := make([]float64, len(data))
		for i, row := range data {
			if len(row) != nCols {
				return nil, fmt.Errorf("explain: training row %d has %d values, want %d", i, len(row), nCols)
			}
			col[i] = row[j]
		}
		sorted := slices.Clone(col)
		sort.Float64s(sorted)

		qts := []float64{
			dataset.QuantileSorted(sorted, 0.25),
			dataset.QuantileSorted(sorted, 0.50),
			dataset.QuantileSorted(sorted, 0.75),
		}
		qts = slices.Compact(qts)
		d.bounds[j] = qts

		name := names[j]
		labels := []string{fmt.Sprintf("%s <= %.2f", name, qts[0])}
		for k := 0; k < len(qts)-1; k++ {
			labels = append(labels, fmt.Sprintf("%.2f < %s <= %.2f", qts[k], name, qts[k+1]))
		}
		labels = append(labels, fmt.Sprintf("%s > %.2f", name, qts[len(qts)-1]))
		d.names[j] = labels

		nBins := len(qts) + 1
		members := make([][]float64, nBins)
		for _, v := range col {
			b := d.bin(j, v)
			members[b] = append(members[b], v)
		}
		d.means[j] = make([]float64, nBins)
		d.stds[j] = make([]float64, nBins)
		for b, vs := range members {
			if len(vs) > 0 {
				d.means[j][b], d.stds[j][b] = stat.PopMeanStdDev(vs, nil)
			}
			d.stds[j][b] += stdFloor
		}
		d.mins[j] = append([]float64{sorted[0]}, qts...)
		d.maxs[j] = append(slices.Clone(qts), sorted[len(sorted)-1])
	}
	return d, nil
}

// bin returns the number of boundaries strictly below v, so a value equal to a
// boundary falls in the lower bin.
func (d *QuartileDiscretizer) bin(col int, v float64) int {
	return sort.SearchFloat64s(d.bounds[col], v)
}

// Discretize maps a row to bin indices.
func (d *QuartileDiscretizer) Discretize(row []float64) []int {
	out := make([]int, len(d.bounds))
	for j := range d.bounds {
		out[j] = d.bin(j, row[j])
	}
	return out
}

// NumBins returns the number of bins of column j.
func (d *QuartileDiscretizer) NumBins(j int) int {
	return len(d.bounds[j]) + 1
}

// Label describes bin b of column j.
func (d *QuartileDiscretizer) Label(j, b int) string {
	return d.names[j][b]
}

// Undiscretize draws a continuous value for bin b of column j from a normal distribution
// fitted to the bin's training rows, truncated to the bin's range.
func (d *QuartileDiscretizer) Undiscretize(j, b int, rng *rand.Rand) float64 {
	lo, hi := d.mins[j][b], d.maxs[j][b]
	mean, std := d.means[j][b], d.stds[j][b]
	if lo == hi {
		return lo
	}
	n := distuv.UnitNormal
	a := n.CDF((lo - mean) / std)
	c := n.CDF((hi - mean) / std)
	u := a + rng.Float64()*(c-a)
	u = math.Min(math.Max(u, 1e-300), 1-1e-16)
	v := mean + std*n.Quantile(u)
	return math.Min(math.Max(v, lo), hi)
}
