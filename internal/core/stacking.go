package core

import (
	"context"
	"fmt"
	"housing_features/internal/domain/model"
)

const (
	DefaultStackingFolds = 5
	DefaultMetaAlpha     = 0.5
)

// StackingRegressor trains a meta-learner on out-of-fold predictions of the
// base regressors. Folds are contiguous and unshuffled; after the meta-learner
// is fitted, every base is refitted on all rows.
type StackingRegressor struct {
	Bases []Candidate
	Meta  RegressorFactory
	Folds int

	fitted []Regressor
	meta   Regressor
}

// NewStackingRegressor uses DefaultStackingFolds and a ridge meta-learner with
// DefaultMetaAlpha.
func NewStackingRegressor(bases []Candidate) *StackingRegressor {
	return &StackingRegressor{
		Bases: bases,
		Meta:  func() Regressor { return NewRidge(DefaultMetaAlpha) },
		Folds: DefaultStackingFolds,
	}
}

func (s *StackingRegressor) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	if len(s.Bases) == 0 {
		return fmt.Errorf("stacking without base regressors: %w", model.ErrInvalidArgument)
	}
	if s.Folds < 2 || s.Folds > len(X) {
		return fmt.Errorf("%d folds over %d rows: %w", s.Folds, len(X), model.ErrInvalidArgument)
	}

	oof := make([][]float64, len(X))
	for i := range oof {
		oof[i] = make([]float64, len(s.Bases))
	}

	for f := 0; f < s.Folds; f++ {
		lo, hi := foldBounds(len(X), s.Folds, f)
		xTrain := append(append([][]float64(nil), X[:lo]...), X[hi:]...)
		yTrain := append(append([]float64(nil), y[:lo]...), y[hi:]...)

		for b, base := range s.Bases {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := base.New()
			if err := r.Fit(ctx, xTrain, yTrain); err != nil {
				return fmt.Errorf("base %s fold %d: %w", base.Name, f, err)
			}
			pred, err := r.Predict(ctx, X[lo:hi])
			if err != nil {
				return fmt.Errorf("base %s fold %d: %w", base.Name, f, err)
			}
			for i, v := range pred {
				oof[lo+i][b] = v
			}
		}
	}

	meta := s.Meta()
	if err := meta.Fit(ctx, oof, y); err != nil {
		return fmt.Errorf("meta learner: %w", err)
	}

	fitted := make([]Regressor, len(s.Bases))
	for b, base := range s.Bases {
		r := base.New()
		if err := r.Fit(ctx, X, y); err != nil {
			return fmt.Errorf("base %s: %w", base.Name, err)
		}
		fitted[b] = r
	}

	s.fitted, s.meta = fitted, meta
	return nil
}

// foldBounds splits n rows into k contiguous folds; the first n%k folds get
// one extra row.
func foldBounds(n, k, f int) (int, int) {
	size, extra := n/k, n%k
	lo := f*size + min(f, extra)
	hi := lo + size
	if f < extra {
		hi++
	}
	return lo, hi
}

func (s *StackingRegressor) Predict(ctx context.Context, X [][]float64) ([]float64, error) {
	if s.meta == nil {
		return nil, fmt.Errorf("stacking: %w", model.ErrNotFitted)
	}
	level1 := make([][]float64, len(X))
	for i := range level1 {
		level1[i] = make([]float64, len(s.fitted))
	}
	for b, r := range s.fitted {
		pred, err := r.Predict(ctx, X)
		if err != nil {
			return nil, fmt.Errorf("base %s: %w", s.Bases[b].Name, err)
		}
		for i, v := range pred {
			level1[i][b] = v
		}
	}
	return s.meta.Predict(ctx, level1)
}
