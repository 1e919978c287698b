package explain

import (
	"context"
	"fmt"
	"sort"

	"co2-forecast/internal/ml"
)

// Global is the dataset-level importance summary. The three slices are aligned by index.
type Global struct {
	FeatureNames  []string
	MeanAbsSHAP   []float64
	RFImportances []float64
}

// RankedFeature is one row of Global.Ranked.
type RankedFeature struct {
	Feature      string
	MeanAbsSHAP  float64
	RFImportance float64
}

// ComputeGlobal pairs the mean |SHAP| of rows with the forest's own importances.
func ComputeGlobal(ctx context.Context, shap *TreeSHAP, forest *ml.Forest, rows [][]float64, names []string) (Global, error) {
	meanAbs, err := shap.MeanAbs(ctx, rows)
	if err != nil {
		return Global{}, fmt.Errorf("mean abs shap: %w", err)
	}
	g := Global{
		FeatureNames:  append([]string(nil), names...),
		MeanAbsSHAP:   meanAbs,
		RFImportances: forest.FeatureImportances(),
	}
	return g, g.Validate()
}

// Validate checks that the three slices have equal length.
func (g Global) Validate() error {
	n := len(g.FeatureNames)
	if len(g.MeanAbsSHAP) != n || len(g.RFImportances) != n {
		return fmt.Errorf("%w: global explanation has %d names, %d shap values, %d importances",
			ml.ErrDimensionMismatch, n, len(g.MeanAbsSHAP), len(g.RFImportances))
	}
	return nil
}

// Ranked lists features by descending mean |SHAP|. Ties keep schema order.
func (g Global) Ranked() []RankedFeature {
	out := make([]RankedFeature, len(g.FeatureNames))
	for i, name := range g.FeatureNames {
		out[i] = RankedFeature{
			Feature:      name,
			MeanAbsSHAP:  g.MeanAbsSHAP[i],
			RFImportance: g.RFImportances[i],
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].MeanAbsSHAP > out[b].MeanAbsSHAP
	})
	return out
}

// Importance returns the mean |SHAP| recorded for name.
func (g Global) Importance(name string) (float64, bool) {
	for i, n := range g.FeatureNames {
		if n == name {
			return g.MeanAbsSHAP[i], true
		}
	}
	return 0, false
}
