package dataset

import (
	"math"
	"testing"

	"co2-forecast/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(200, 42)
	require.NoError(t, err)
	b, err := Generate(200, 42)
	require.NoError(t, err)

	require.Equal(t, a.Len(), b.Len())
	for i := range a.X {
		for j := range a.X[i] {
			assert.Equal(t, math.Float64bits(a.X[i][j]), math.Float64bits(b.X[i][j]), "row %d col %d", i, j)
		}
		assert.Equal(t, math.Float64bits(a.Y[i]), math.Float64bits(b.Y[i]), "target row %d", i)
	}

	c, err := Generate(200, 7)
	require.NoError(t, err)
	assert.NotEqual(t, a.Y, c.Y, "different seeds should give different data")
}

func TestGenerate_Ranges(t *testing.T) {
	ds, err := Generate(500, 1)
	require.NoError(t, err)

	energyIdx := features.MustIndex(features.EnergyConsumption)
	outputIdx := features.MustIndex(features.IndustrialOutput)
	gdpIdx := features.MustIndex(features.GDPPerCapita)
	cylIdx := features.MustIndex(features.Cylinders)

	validCylinders := map[float64]bool{3: true, 4: true, 6: true, 8: true, 10: true, 12: true}

	for i, row := range ds.X {
		require.Len(t, row, features.NumFeatures)
		assert.GreaterOrEqual(t, row[energyIdx], energyFloor)
		assert.True(t, validCylinders[row[cylIdx]], "unexpected cylinder count %v", row[cylIdx])
		assert.Equal(t, row[energyIdx]/row[outputIdx], row[features.MustIndex(features.EnergyIntensity)])
		assert.Equal(t, row[gdpIdx]*row[energyIdx], row[features.MustIndex(features.GDPEnergyInteraction)])
		assert.GreaterOrEqual(t, ds.Y[i], 0.0)
	}
}

func TestGenerate_TooFewSamples(t *testing.T) {
	_, err := Generate(1, 42)
	assert.ErrorIs(t, err, ErrTooFewSamples)
}

func TestSplit(t *testing.T) {
	ds, err := Generate(100, 42)
	require.NoError(t, err)

	train, test, err := Split(ds, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, 80, train.Len())
	assert.Equal(t, 20, test.Len())

	seen := make(map[int]bool)
	for _, idx := range append(append([]int{}, train.Index...), test.Index...) {
		assert.False(t, seen[idx], "row %d appears twice", idx)
		seen[idx] = true
	}
	assert.Len(t, seen, 100)

	for i, idx := range train.Index {
		assert.Equal(t, ds.Y[idx], train.Y[i])
	}

	train2, _, err := Split(ds, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train.Index, train2.Index)

	_, _, err = Split(ds, 1.5, 42)
	assert.Error(t, err)
}

func TestKFold(t *testing.T) {
	folds, err := KFold(23, 5, 42)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	covered := make(map[int]int)
	for i, f := range folds {
		assert.Equal(t, 23, len(f.Train)+len(f.Validation))
		if i < 3 {
			assert.Len(t, f.Validation, 5)
		} else {
			assert.Len(t, f.Validation, 4)
		}
		inVal := make(map[int]bool)
		for _, v := range f.Validation {
			covered[v]++
			inVal[v] = true
		}
		for _, tr := range f.Train {
			assert.False(t, inVal[tr], "fold %d leaks row %d", i, tr)
		}
	}
	assert.Len(t, covered, 23)
	for idx, n := range covered {
		assert.Equal(t, 1, n, "row %d validated %d times", idx, n)
	}

	_, err = KFold(3, 5, 42)
	assert.ErrorIs(t, err, ErrTooFewSamples)
}

func TestSampleRows(t *testing.T) {
	rows := SampleRows(1000, 300, 42)
	assert.Len(t, rows, 300)
	assert.Equal(t, rows, SampleRows(1000, 300, 42))

	seen := make(map[int]bool)
	for _, r := range rows {
		assert.False(t, seen[r])
		seen[r] = true
	}

	assert.Len(t, SampleRows(10, 300, 42), 10)
	assert.Nil(t, SampleRows(10, 0, 42))
}

func TestQuantile(t *testing.T) {
	values := []float64{4, 1, 3, 2, math.NaN()}

	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.25, 1.75},
		{0.5, 2.5},
		{0.75, 3.25},
		{1, 4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Quantile(values, tt.q), 1e-12, "q=%v", tt.q)
	}

	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.9))
}

func TestPartitionTailAndColumn(t *testing.T) {
	p := Partition{
		Index: []int{5, 6, 7},
		X:     [][]float64{{1, 2}, {3, 4}, {5, 6}},
		Y:     []float64{10, 20, 30},
	}

	tail := p.Tail(2)
	assert.Equal(t, []int{6, 7}, tail.Index)
	assert.Equal(t, []float64{20, 30}, tail.Y)
	assert.Equal(t, 3, p.Tail(10).Len())
	assert.Equal(t, 0, p.Tail(-1).Len())

	assert.Equal(t, []float64{2, 4, 6}, p.Column(1))
}
