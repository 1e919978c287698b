package ml

import (
	"math"
	"math/rand/v2"
	"sort"
)

// LeafFeature marks a leaf in Tree.Feature.
const LeafFeature = -1

// Tree is a fitted CART regression tree stored as parallel node arrays. Node 0 is the
// root. For an internal node i, rows with x[Feature[i]] <= Threshold[i] go to Left[i],
// all others to Right[i].
type Tree struct {
	Feature   []int
	Threshold []float64
	Left      []int
	Right     []int
	Value     []float64 // mean target of the training rows at the node
	Samples   []float64 // training rows reaching the node, bootstrap duplicates included
	Impurity  []float64 // mean squared error at the node
}

// TreeParams controls tree growth. Zero values mean "unlimited" / defaults.
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int // default 2
	MinSamplesLeaf  int // default 1
	MaxFeatures     int // features tried per split, default all
}

func (p TreeParams) withDefaults(nFeatures int) TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > nFeatures {
		p.MaxFeatures = nFeatures
	}
	return p
}

// NodeCount returns the number of nodes.
func (t *Tree) NodeCount() int {
	return len(t.Feature)
}

// IsLeaf reports whether node i has no children.
func (t *Tree) IsLeaf(i int) bool {
	return t.Feature[i] == LeafFeature
}

// Apply returns the index of the leaf reached by x.
func (t *Tree) Apply(x []float64) int {
	i := 0
	for !t.IsLeaf(i) {
		if x[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return i
}

// Predict returns the leaf value reached by x.
func (t *Tree) Predict(x []float64) float64 {
	return t.Value[t.Apply(x)]
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		if t.IsLeaf(i) {
			return d
		}
		return max(walk(t.Left[i], d+1), walk(t.Right[i], d+1))
	}
	return walk(0, 0)
}

// featureImportances returns the impurity decrease credited to each feature,
// normalised to sum to one (all zeros for a single-leaf tree).
func (t *Tree) featureImportances(nFeatures int) []float64 {
	imp := make([]float64, nFeatures)
	for i := range t.Feature {
		if t.IsLeaf(i) {
			continue
		}
		l, r := t.Left[i], t.Right[i]
		imp[t.Feature[i]] += t.Samples[i]*t.Impurity[i] -
			t.Samples[l]*t.Impurity[l] -
			t.Samples[r]*t.Impurity[r]
	}
	normalise(imp)
	return imp
}

func normalise(v []float64) {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}

// FitTree grows a regression tree on the given row positions of X. rows may contain
// duplicates (bootstrap samples). rng drives the feature visiting order.
func FitTree(X [][]float64, y []float64, rows []int, params TreeParams, rng *rand.Rand) (*Tree, error) {
	nFeatures, err := checkShape(X, y)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotEnoughSamples
	}

	b := &treeBuilder{
		X:       X,
		y:       y,
		params:  params.withDefaults(nFeatures),
		rng:     rng,
		nFeat:   nFeatures,
		tree:    &Tree{},
		scratch: make([]int, len(rows)),
	}
	work := append([]int(nil), rows...)
	b.grow(work, 0)
	return b.tree, nil
}

type treeBuilder struct {
	X       [][]float64
	y       []float64
	params  TreeParams
	rng     *rand.Rand
	nFeat   int
	tree    *Tree
	scratch []int
}

func (b *treeBuilder) addNode(rows []int) int {
	mean, mse := meanAndMSE(b.y, rows)
	t := b.tree
	t.Feature = append(t.Feature, LeafFeature)
	t.Threshold = append(t.Threshold, 0)
	t.Left = append(t.Left, -1)
	t.Right = append(t.Right, -1)
	t.Value = append(t.Value, mean)
	t.Samples = append(t.Samples, float64(len(rows)))
	t.Impurity = append(t.Impurity, mse)
	return len(t.Feature) - 1
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	node := b.addNode(rows)

	if len(rows) < b.params.MinSamplesSplit ||
		len(rows) < 2*b.params.MinSamplesLeaf ||
		b.tree.Impurity[node] <= 1e-12 ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return node
	}

	feature, threshold, ok := b.bestSplit(rows)
	if !ok {
		return node
	}

	// Partition rows in place: left block first.
	i, j := 0, len(rows)-1
	for i <= j {
		if b.X[rows[i]][feature] <= threshold {
			i++
		} else {
			rows[i], rows[j] = rows[j], rows[i]
			j--
		}
	}

	b.tree.Feature[node] = feature
	b.tree.Threshold[node] = threshold
	left := b.grow(rows[:i], depth+1)
	right := b.grow(rows[i:], depth+1)
	b.tree.Left[node] = left
	b.tree.Right[node] = right
	return node
}

// bestSplit maximises sum_L^2/n_L + sum_R^2/n_R, which is equivalent to minimising the
// children's summed squared error.
func (b *treeBuilder) bestSplit(rows []int) (int, float64, bool) {
	n := len(rows)
	total := 0.0
	for _, r := range rows {
		total += b.y[r]
	}

	bestScore := math.Inf(-1)
	bestFeature := -1
	bestThreshold := 0.0
	minLeaf := b.params.MinSamplesLeaf

	order := b.rng.Perm(b.nFeat)[:b.params.MaxFeatures]
	sorted := b.scratch[:n]
	for _, f := range order {
		copy(sorted, rows)
		sort.Slice(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		if b.X[sorted[0]][f] == b.X[sorted[n-1]][f] {
			continue // constant in this node
		}

		sumLeft := 0.0
		for i := 0; i < n-1; i++ {
			sumLeft += b.y[sorted[i]]
			lo, hi := b.X[sorted[i]][f], b.X[sorted[i+1]][f]
			if lo == hi {
				continue
			}
			nLeft := i + 1
			nRight := n - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			sumRight := total - sumLeft
			score := sumLeft*sumLeft/float64(nLeft) + sumRight*sumRight/float64(nRight)
			if score > bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi || math.IsInf(bestThreshold, 0) || math.IsNaN(bestThreshold) {
					bestThreshold = lo
				}
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func meanAndMSE(y []float64, rows []int) (float64, float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, r := range rows {
		sum += y[r]
	}
	mean := sum / float64(len(rows))
	sq := 0.0
	for _, r := range rows {
		d := y[r] - mean
		sq += d * d
	}
	return mean, sq / float64(len(rows))
}
