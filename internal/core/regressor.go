package core

import (
	"context"
	"fmt"
	"housing_features/internal/domain/model"
	"math"
	"time"

	"go.uber.org/zap"
)

// Regressor is a model over a dense row-major design matrix. Implementations
// run locally (Ridge, StackingRegressor) or behind the ML service.
type Regressor interface {
	Fit(ctx context.Context, X [][]float64, y []float64) error
	Predict(ctx context.Context, X [][]float64) ([]float64, error)
}

// RegressorFactory returns a fresh, unfitted regressor.
type RegressorFactory func() Regressor

type Candidate struct {
	Name string
	New  RegressorFactory
}

// Score is the validation result of one candidate.
type Score struct {
	Name string
	MAPE float64
	MAE  float64
}

func checkXY(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty design matrix: %w", model.ErrInvalidArgument)
	}
	if len(X) != len(y) {
		return fmt.Errorf("%d rows for %d targets: %w", len(X), len(y), model.ErrInvalidArgument)
	}
	if len(X[0]) == 0 {
		return fmt.Errorf("design matrix has no features: %w", model.ErrInvalidArgument)
	}
	return checkRows(X, len(X[0]))
}

func checkRows(X [][]float64, width int) error {
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), width, model.ErrInvalidArgument)
		}
	}
	return nil
}

// MAPE is the mean absolute percentage error as a fraction. Zero targets are
// divided by machine epsilon instead.
func MAPE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair(yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i]-yPred[i]) / math.Max(math.Abs(yTrue[i]), epsilon)
	}
	return sum / float64(len(yTrue)), nil
}

const epsilon = 2.220446049250313e-16

func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair(yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

func checkPair(a, b []float64) error {
	if len(a) == 0 || len(a) != len(b) {
		return fmt.Errorf("metric over %d targets and %d predictions: %w", len(a), len(b), model.ErrInvalidArgument)
	}
	return nil
}

// TrainValidSplit keeps the first ratio of rows for training and the rest for
// validation, without shuffling.
func TrainValidSplit(X [][]float64, y []float64, ratio float64) (xTrain [][]float64, yTrain []float64, xValid [][]float64, yValid []float64, err error) {
	if err := checkXY(X, y); err != nil {
		return nil, nil, nil, nil, err
	}
	if !(ratio > 0 && ratio < 1) {
		return nil, nil, nil, nil, fmt.Errorf("split ratio %v outside (0, 1): %w", ratio, model.ErrInvalidArgument)
	}
	cut := int(float64(len(X)) * ratio)
	if cut == 0 || cut == len(X) {
		return nil, nil, nil, nil, fmt.Errorf("split of %d rows at %v leaves an empty side: %w", len(X), ratio, model.ErrInvalidArgument)
	}
	return X[:cut], y[:cut], X[cut:], y[cut:], nil
}

// LogTarget fits the wrapped regressor on ln(y) and exponentiates predictions.
type LogTarget struct {
	Inner Regressor
}

func (l *LogTarget) Fit(ctx context.Context, X [][]float64, y []float64) error {
	logY := make([]float64, len(y))
	for i, v := range y {
		if v <= 0 {
			return fmt.Errorf("log target needs positive values, row %d is %v: %w", i, v, model.ErrInvalidArgument)
		}
		logY[i] = math.Log(v)
	}
	return l.Inner.Fit(ctx, X, logY)
}

func (l *LogTarget) Predict(ctx context.Context, X [][]float64) ([]float64, error) {
	pred, err := l.Inner.Predict(ctx, X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pred))
	for i, v := range pred {
		out[i] = math.Exp(v)
	}
	return out, nil
}

// SelectRegressor fits every candidate on the training split, scores it on the
// validation split and returns the candidate with the lowest MAPE, refitted on
// all rows. Ties keep the earlier candidate.
func SelectRegressor(
	ctx context.Context,
	logger *zap.Logger,
	candidates []Candidate,
	X [][]float64,
	y []float64,
	ratio float64,
) (Regressor, []Score, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("no candidate regressors: %w", model.ErrInvalidArgument)
	}
	xTrain, yTrain, xValid, yValid, err := TrainValidSplit(X, y, ratio)
	if err != nil {
		return nil, nil, err
	}

	scores := make([]Score, 0, len(candidates))
	best := -1
	for i, c := range candidates {
		start := time.Now()
		score, err := evaluate(ctx, c, xTrain, yTrain, xValid, yValid)
		if err != nil {
			return nil, nil, fmt.Errorf("candidate %s: %w", c.Name, err)
		}
		scores = append(scores, score)
		logger.Info("candidate scored",
			zap.String("model", c.Name),
			zap.Float64("mape", score.MAPE),
			zap.Float64("mae", score.MAE),
			zap.Duration("took", time.Since(start)))

		if best < 0 || score.MAPE < scores[best].MAPE {
			best = i
		}
	}

	winner := candidates[best].New()
	if err := winner.Fit(ctx, X, y); err != nil {
		return nil, nil, fmt.Errorf("refitting %s: %w", candidates[best].Name, err)
	}
	logger.Info("regressor selected", zap.String("model", candidates[best].Name))
	return winner, scores, nil
}

func evaluate(ctx context.Context, c Candidate, xTrain [][]float64, yTrain []float64, xValid [][]float64, yValid []float64) (Score, error) {
	r := c.New()
	if err := r.Fit(ctx, xTrain, yTrain); err != nil {
		return Score{}, err
	}
	pred, err := r.Predict(ctx, xValid)
	if err != nil {
		return Score{}, err
	}
	mape, err := MAPE(yValid, pred)
	if err != nil {
		return Score{}, err
	}
	mae, err := MAE(yValid, pred)
	if err != nil {
		return Score{}, err
	}
	return Score{Name: c.Name, MAPE: mape, MAE: mae}, nil
}
