// Package ml provides the regression models served by the forecasting API: a CART
// regression tree, a bootstrap-aggregated random forest built from those trees, an
// ordinary-least-squares baseline, and evaluation metrics shared by both.
//
// Models are plain data after fitting so they can be persisted and reloaded without
// retraining.
package ml

import "errors"

var (
	// ErrNotEnoughSamples is returned when a model cannot be fitted on the given data.
	ErrNotEnoughSamples = errors.New("ml: not enough samples")
	// ErrDimensionMismatch is returned when rows and targets disagree in shape.
	ErrDimensionMismatch = errors.New("ml: dimension mismatch")
)

// Regressor predicts a continuous target from one feature row.
// Implementations must be safe for concurrent use once fitted.
type Regressor interface {
	// Predict returns the model output for x. x must follow the training column order.
	Predict(x []float64) float64
}

// PredictAll applies m to every row of X.
func PredictAll(m Regressor, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = m.Predict(row)
	}
	return out
}

func checkShape(X [][]float64, y []float64) (nFeatures int, err error) {
	if len(X) == 0 {
		return 0, ErrNotEnoughSamples
	}
	if len(X) != len(y) {
		return 0, errors.Join(ErrDimensionMismatch, errors.New("row and target counts differ"))
	}
	nFeatures = len(X[0])
	for _, row := range X {
		if len(row) != nFeatures {
			return 0, errors.Join(ErrDimensionMismatch, errors.New("ragged feature rows"))
		}
	}
	return nFeatures, nil
}
