package ml

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestParams configures a random forest.
type ForestParams struct {
	NEstimators int
	Seed        uint64
	Tree        TreeParams
	// Workers bounds concurrent tree fitting; 0 uses GOMAXPROCS.
	Workers int
}

// Forest is a bagged ensemble of regression trees. Its prediction is the mean of the
// tree predictions.
type Forest struct {
	Trees       []*Tree
	NFeatures   int
	Importances []float64
}

// FitForest fits p.NEstimators trees, each on its own bootstrap sample. Tree i draws its
// randomness from (p.Seed, i) so the result does not depend on scheduling.
func FitForest(ctx context.Context, X [][]float64, y []float64, p ForestParams) (*Forest, error) {
	nFeatures, err := checkShape(X, y)
	if err != nil {
		return nil, err
	}
	if p.NEstimators < 1 {
		return nil, fmt.Errorf("ml: forest needs at least one estimator, got %d", p.NEstimators)
	}
	if len(X) < 2 {
		return nil, fmt.Errorf("%w: forest needs at least 2 rows, got %d", ErrNotEnoughSamples, len(X))
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, p.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(i)+1))
			rows := make([]int, len(X))
			for k := range rows {
				rows[k] = rng.IntN(len(X))
			}
			t, err := FitTree(X, y, rows, p.Tree, rng)
			if err != nil {
				return fmt.Errorf("fit tree %d: %w", i, err)
			}
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := &Forest{Trees: trees, NFeatures: nFeatures}
	f.Importances = f.computeImportances()
	return f, nil
}

// Predict returns the mean prediction over all trees.
func (f *Forest) Predict(x []float64) float64 {
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// FeatureImportances returns the mean decrease in impurity per feature, aligned with the
// training column order and summing to one.
func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.Importances...)
}

func (f *Forest) computeImportances() []float64 {
	imp := make([]float64, f.NFeatures)
	for _, t := range f.Trees {
		for j, v := range t.featureImportances(f.NFeatures) {
			imp[j] += v
		}
	}
	for j := range imp {
		imp[j] /= float64(len(f.Trees))
	}
	normalise(imp)
	return imp
}
