package ml

import (
	"fmt"

	"github.com/sajari/regression"
)

// Linear is an ordinary-least-squares model with intercept.
type Linear struct {
	Intercept    float64
	Coefficients []float64
}

// FitLinear solves the least-squares problem y ~ b0 + X·b. names labels the columns and
// must match the row width.
func FitLinear(X [][]float64, y []float64, names []string) (*Linear, error) {
	nFeatures, err := checkShape(X, y)
	if err != nil {
		return nil, err
	}
	if len(names) != nFeatures {
		return nil, fmt.Errorf("%w: %d names for %d columns", ErrDimensionMismatch, len(names), nFeatures)
	}
	if len(X) <= nFeatures {
		return nil, fmt.Errorf("%w: %d rows for %d coefficients", ErrNotEnoughSamples, len(X), nFeatures+1)
	}

	r := new(regression.Regression)
	r.SetObserved("target")
	for i, name := range names {
		r.SetVar(i, name)
	}
	for i, row := range X {
		r.Train(regression.DataPoint(y[i], row))
	}
	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("ml: linear regression: %w", err)
	}

	lin := &Linear{
		Intercept:    r.Coeff(0),
		Coefficients: make([]float64, nFeatures),
	}
	for i := range lin.Coefficients {
		lin.Coefficients[i] = r.Coeff(i + 1)
	}
	return lin, nil
}

// Predict evaluates the fitted linear function.
func (l *Linear) Predict(x []float64) float64 {
	out := l.Intercept
	for i, c := range l.Coefficients {
		out += c * x[i]
	}
	return out
}
