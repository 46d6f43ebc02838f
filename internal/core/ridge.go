package core

import (
	"context"
	"errors"
	"fmt"
	"housing_features/internal/domain/model"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge is L2-regularised least squares with an unpenalised intercept.
type Ridge struct {
	Alpha float64

	coef      []float64
	intercept float64
}

func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

func (r *Ridge) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	if r.Alpha < 0 {
		return fmt.Errorf("ridge alpha %v is negative: %w", r.Alpha, model.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, p := len(X), len(X[0])

	// Centre columns and target so the intercept drops out of the penalty.
	xMean := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		xMean[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i := range X {
		for j := 0; j < p; j++ {
			xc.Set(i, j, X[i][j]-xMean[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var gram mat.Dense
	gram.Mul(xc.T(), xc)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+r.Alpha)
	}
	rhs := mat.NewVecDense(p, nil)
	rhs.MulVec(xc.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&gram, rhs); err != nil {
		// An ill-conditioned system still yields a solution.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("solving ridge system: %w", err)
		}
	}

	r.coef = make([]float64, p)
	r.intercept = yMean
	for j := 0; j < p; j++ {
		r.coef[j] = w.AtVec(j)
		r.intercept -= r.coef[j] * xMean[j]
	}
	return nil
}

func (r *Ridge) Predict(_ context.Context, X [][]float64) ([]float64, error) {
	if r.coef == nil {
		return nil, fmt.Errorf("ridge: %w", model.ErrNotFitted)
	}
	if err := checkRows(X, len(r.coef)); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		v := r.intercept
		for j, c := range r.coef {
			v += c * row[j]
		}
		out[i] = v
	}
	return out, nil
}

// Coefficients returns the fitted weights and intercept.
func (r *Ridge) Coefficients() ([]float64, float64) {
	return append([]float64(nil), r.coef...), r.intercept
}
