package explain

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ridgeFit is a weighted ridge regression with an unpenalised intercept.
type ridgeFit struct {
	cols      []int
	intercept float64
	coef      []float64
}

// fitRidge minimises sum w_i (y_i - b0 - x_i·b)^2 + alpha |b|^2 over the given columns
// of X. Inputs are centred on their weighted means so the intercept is not penalised.
func fitRidge(X [][]float64, cols []int, y, w []float64, alpha float64) (ridgeFit, error) {
	p := len(cols)
	sw := 0.0
	xMean := make([]float64, p)
	yMean := 0.0
	for i, row := range X {
		sw += w[i]
		yMean += w[i] * y[i]
		for k, c := range cols {
			xMean[k] += w[i] * row[c]
		}
	}
	if sw <= 0 {
		return ridgeFit{}, fmt.Errorf("explain: sample weights sum to %v", sw)
	}
	yMean /= sw
	for k := range xMean {
		xMean[k] /= sw
	}

	gram := mat.NewSymDense(p, nil)
	rhs := mat.NewVecDense(p, nil)
	xc := make([]float64, p)
	for i, row := range X {
		for k, c := range cols {
			xc[k] = row[c] - xMean[k]
		}
		yc := y[i] - yMean
		for a := 0; a < p; a++ {
			rhs.SetVec(a, rhs.AtVec(a)+w[i]*xc[a]*yc)
			for b := a; b < p; b++ {
				gram.SetSym(a, b, gram.At(a, b)+w[i]*xc[a]*xc[b])
			}
		}
	}
	for a := 0; a < p; a++ {
		gram.SetSym(a, a, gram.At(a, a)+alpha)
	}

	beta, err := solveSym(gram, rhs)
	if err != nil {
		return ridgeFit{}, err
	}

	fit := ridgeFit{cols: cols, coef: make([]float64, p), intercept: yMean}
	for k := range fit.coef {
		fit.coef[k] = beta.AtVec(k)
		fit.intercept -= fit.coef[k] * xMean[k]
	}
	return fit, nil
}

// solveSym solves A·x = b by Cholesky, adding a small ridge when A is singular
// (constant columns in an unpenalised fit).
func solveSym(a *mat.SymDense, b *mat.VecDense) (*mat.VecDense, error) {
	var chol mat.Cholesky
	if !chol.Factorize(a) {
		n := a.SymmetricDim()
		jitter := 1e-10
		for i := 0; i < n; i++ {
			jitter = max(jitter, 1e-10*a.At(i, i))
		}
		for i := 0; i < n; i++ {
			a.SetSym(i, i, a.At(i, i)+jitter)
		}
		if !chol.Factorize(a) {
			return nil, fmt.Errorf("explain: surrogate system is not positive definite")
		}
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		return nil, fmt.Errorf("explain: solve surrogate: %w", err)
	}
	return &x, nil
}

func (r ridgeFit) predict(row []float64) float64 {
	out := r.intercept
	for k, c := range r.cols {
		out += r.coef[k] * row[c]
	}
	return out
}

// score is the weighted coefficient of determination on the fitting data.
func (r ridgeFit) score(X [][]float64, y, w []float64) float64 {
	sw, yMean := 0.0, 0.0
	for i := range y {
		sw += w[i]
		yMean += w[i] * y[i]
	}
	yMean /= sw
	var ssRes, ssTot float64
	for i, row := range X {
		d := y[i] - r.predict(row)
		ssRes += w[i] * d * d
		m := y[i] - yMean
		ssTot += w[i] * m * m
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
