package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics summarises held-out performance. CV fields are NaN when the model was not
// cross-validated.
type Metrics struct {
	R2        float64
	RMSE      float64
	MAE       float64
	CVMAEMean float64
	CVMAEStd  float64
}

// Evaluate scores m on (X, y). Cross-validation fields are left undefined.
func Evaluate(m Regressor, X [][]float64, y []float64) Metrics {
	pred := PredictAll(m, X)
	return Metrics{
		R2:        R2(y, pred),
		RMSE:      RMSE(y, pred),
		MAE:       MAE(y, pred),
		CVMAEMean: math.NaN(),
		CVMAEStd:  math.NaN(),
	}
}

// MAE is the mean absolute error.
func MAE(y, pred []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	return floats.Distance(y, pred, 1) / float64(len(y))
}

// RMSE is the square root of the mean squared error.
func RMSE(y, pred []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	mse := 0.0
	for i := range y {
		d := y[i] - pred[i]
		mse += d * d
	}
	mse /= float64(len(y))
	return math.Sqrt(mse)
}

// R2 is the coefficient of determination of pred against y.
func R2(y, pred []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	return stat.RSquaredFrom(pred, y, nil)
}

// WithCrossValidation returns m with the CV fields set from per-fold MAE scores
// (population standard deviation).
func (m Metrics) WithCrossValidation(foldMAE []float64) Metrics {
	if len(foldMAE) == 0 {
		return m
	}
	m.CVMAEMean, m.CVMAEStd = stat.PopMeanStdDev(foldMAE, nil)
	return m
}

// CrossValidated reports whether the CV fields are defined.
func (m Metrics) CrossValidated() bool {
	return !math.IsNaN(m.CVMAEMean) && !math.IsNaN(m.CVMAEStd)
}
