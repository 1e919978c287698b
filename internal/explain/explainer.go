// Package explain turns model predictions into per-feature attributions.
//
// Two local explainers are provided, both implementing LocalExplainer: a perturbation
// surrogate (LIME) and an exact additive attribution for tree ensembles (TreeSHAP).
// Explainers are bound to their model and reference data at construction and are safe
// for concurrent use afterwards.
package explain

import (
	"errors"

	"co2-forecast/internal/features"
)

// ErrEmptyBackground is returned when an explainer is built without reference rows.
var ErrEmptyBackground = errors.New("explain: empty background data")

// Method identifies an explanation technique.
type Method string

const (
	MethodLIME     Method = "lime"
	MethodTreeSHAP Method = "tree_shap"
)

// Effect labels.
const (
	EffectPositive = "positive"
	EffectNegative = "negative"
)

// Item is one attributed term. For TreeSHAP Feature is the schema name; for LIME it is
// the discretized condition the instance satisfies, e.g. "renewable_share > 42.10".
type Item struct {
	Feature string
	Weight  float64
}

// Effect reports the sign of the contribution. Zero counts as positive.
func (it Item) Effect() string {
	if it.Weight >= 0 {
		return EffectPositive
	}
	return EffectNegative
}

// Attribution is a local explanation of one prediction.
//
// Base + sum(Items[i].Weight) == Prediction holds for both methods: TreeSHAP by
// construction, LIME because Base is derived from the model prediction and weights.
type Attribution struct {
	Method     Method
	Base       float64
	Prediction float64
	Items      []Item
}

// Sum returns the total weight of all items.
func (a Attribution) Sum() float64 {
	total := 0.0
	for _, it := range a.Items {
		total += it.Weight
	}
	return total
}

// LocalExplainer explains single predictions of the model it was built for.
type LocalExplainer interface {
	Method() Method
	Explain(x features.Vector) (Attribution, error)
}
