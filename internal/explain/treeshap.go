package explain

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"runtime"

	"golang.org/x/sync/errgroup"

	"co2-forecast/internal/features"
	"co2-forecast/internal/ml"
)

// maxSHAPFeatures is the widest row the path bitmasks can track.
const maxSHAPFeatures = 64

// TreeSHAP computes exact interventional Shapley values for a random forest.
//
// For every background row r the game "take feature i from x, the rest from r" is solved
// exactly per tree with one walk that follows x and r together and forks where they
// disagree. Values are averaged over trees and background rows, so
//
//	BaseValue() + sum(Values(x)) == forest.Predict(x)
//
// where BaseValue is the mean forest prediction over the background.
type TreeSHAP struct {
	forest     *ml.Forest
	background [][]float64
	names      []string
	base       float64
	// weight[a][b] = a! b! / (a+b+1)!
	weight [][]float64
}

// NewTreeSHAP binds an explainer to forest and a background sample. names labels the
// output and must match the forest width.
func NewTreeSHAP(forest *ml.Forest, background [][]float64, names []string) (*TreeSHAP, error) {
	if len(background) == 0 {
		return nil, ErrEmptyBackground
	}
	if forest == nil || len(forest.Trees) == 0 {
		return nil, fmt.Errorf("explain: tree explainer needs a fitted forest")
	}
	if forest.NFeatures > maxSHAPFeatures {
		return nil, fmt.Errorf("explain: %d features exceed the supported %d", forest.NFeatures, maxSHAPFeatures)
	}
	if len(names) != forest.NFeatures {
		return nil, fmt.Errorf("%w: %d names for %d features", ml.ErrDimensionMismatch, len(names), forest.NFeatures)
	}
	for i, row := range background {
		if len(row) != forest.NFeatures {
			return nil, fmt.Errorf("%w: background row %d has %d values", ml.ErrDimensionMismatch, i, len(row))
		}
	}

	s := &TreeSHAP{
		forest:     forest,
		background: background,
		names:      names,
		weight:     shapleyWeights(forest.NFeatures),
	}
	sum := 0.0
	for _, r := range background {
		sum += forest.Predict(r)
	}
	s.base = sum / float64(len(background))
	return s, nil
}

func shapleyWeights(n int) [][]float64 {
	lf := make([]float64, n+2)
	for i := 1; i < len(lf); i++ {
		lf[i] = lf[i-1] + math.Log(float64(i))
	}
	w := make([][]float64, n+1)
	for a := range w {
		w[a] = make([]float64, n+1)
		for b := 0; a+b < n; b++ {
			w[a][b] = math.Exp(lf[a] + lf[b] - lf[a+b+1])
		}
	}
	return w
}

// Method implements LocalExplainer.
func (s *TreeSHAP) Method() Method { return MethodTreeSHAP }

// BaseValue is the expected model output over the background sample.
func (s *TreeSHAP) BaseValue() float64 { return s.base }

// Values returns one attribution per feature in column order.
func (s *TreeSHAP) Values(x []float64) []float64 {
	phi := make([]float64, s.forest.NFeatures)
	for _, t := range s.forest.Trees {
		for _, r := range s.background {
			s.walk(t, 0, x, r, 0, 0, phi)
		}
	}
	scale := 1 / float64(len(s.forest.Trees)*len(s.background))
	for i := range phi {
		phi[i] *= scale
	}
	return phi
}

// walk accumulates the Shapley values of one tree for the pair (x, r). fromX and fromR
// are the features whose split decisions were taken from x and from r on the way down.
func (s *TreeSHAP) walk(t *ml.Tree, node int, x, r []float64, fromX, fromR uint64, phi []float64) {
	if t.IsLeaf(node) {
		nx, nr := bits.OnesCount64(fromX), bits.OnesCount64(fromR)
		v := t.Value[node]
		if nx > 0 {
			add := v * s.weight[nx-1][nr]
			for m := fromX; m != 0; m &= m - 1 {
				phi[bits.TrailingZeros64(m)] += add
			}
		}
		if nr > 0 {
			sub := v * s.weight[nx][nr-1]
			for m := fromR; m != 0; m &= m - 1 {
				phi[bits.TrailingZeros64(m)] -= sub
			}
		}
		return
	}

	f := t.Feature[node]
	bit := uint64(1) << uint(f)
	xChild, rChild := t.Right[node], t.Right[node]
	if x[f] <= t.Threshold[node] {
		xChild = t.Left[node]
	}
	if r[f] <= t.Threshold[node] {
		rChild = t.Left[node]
	}

	switch {
	case fromX&bit != 0:
		s.walk(t, xChild, x, r, fromX, fromR, phi)
	case fromR&bit != 0:
		s.walk(t, rChild, x, r, fromX, fromR, phi)
	case xChild == rChild:
		s.walk(t, xChild, x, r, fromX, fromR, phi)
	default:
		s.walk(t, xChild, x, r, fromX|bit, fromR, phi)
		s.walk(t, rChild, x, r, fromX, fromR|bit, phi)
	}
}

// Explain implements LocalExplainer. Items follow the schema order.
func (s *TreeSHAP) Explain(x features.Vector) (Attribution, error) {
	if s.forest.NFeatures != features.NumFeatures {
		return Attribution{}, fmt.Errorf("%w: forest expects %d features", ml.ErrDimensionMismatch, s.forest.NFeatures)
	}
	row := x.Slice()
	phi := s.Values(row)
	items := make([]Item, len(phi))
	for i, v := range phi {
		items[i] = Item{Feature: s.names[i], Weight: v}
	}
	return Attribution{
		Method:     MethodTreeSHAP,
		Base:       s.base,
		Prediction: s.forest.Predict(row),
		Items:      items,
	}, nil
}

// MeanAbs returns the mean absolute attribution of every feature over rows. Rows are
// explained concurrently.
func (s *TreeSHAP) MeanAbs(ctx context.Context, rows [][]float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBackground
	}
	perRow := make([][]float64, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perRow[i] = s.Values(row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float64, s.forest.NFeatures)
	for _, phi := range perRow {
		for j, v := range phi {
			out[j] += math.Abs(v)
		}
	}
	for j := range out {
		out[j] /= float64(len(rows))
	}
	return out, nil
}
