package core

import (
	"context"
	"fmt"
	"housing_features/internal/domain/model"
	"housing_features/internal/infrastructure/metrics"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PredictionColumn receives the test-set predictions.
const PredictionColumn = "prediction"

// RunRecorder persists the validation scores of a training run.
type RunRecorder interface {
	RecordRuns(ctx context.Context, runs []model.ModelRun) error
}

type TrainingConfig struct {
	// RunID tags recorded scores; empty generates one.
	RunID string
	// Columns of the design matrix; empty means every assembled feature.
	Columns    []string
	SplitRatio float64
	LogTarget  bool
	// Stacking adds a stacked candidate over all others when there are at
	// least two.
	Stacking bool
}

type TrainingResult struct {
	RunID  string
	Best   string
	Scores []Score
}

type PredictionService struct {
	cfg      TrainingConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	recorder RunRecorder
}

// NewPredictionService builds the training stage. recorder may be nil, in
// which case scores are only logged.
func NewPredictionService(cfg TrainingConfig, logger *zap.Logger, m *metrics.Metrics, recorder RunRecorder) *PredictionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PredictionService{cfg: cfg, logger: logger, metrics: m, recorder: recorder}
}

// Train selects the best candidate on train and, when test is not nil, appends
// its predictions to test as PredictionColumn. Null features are filled with 0.
func (s *PredictionService) Train(
	ctx context.Context,
	train, test *model.FeatureMatrix,
	targetColumn string,
	candidates []Candidate,
) (*TrainingResult, error) {
	defer s.metrics.ObserveStage("train", time.Now())

	columns := s.cfg.Columns
	if len(columns) == 0 {
		columns = train.Features()
	}
	X, err := train.Design(columns, 0)
	if err != nil {
		return nil, fmt.Errorf("train design: %w", err)
	}
	y, err := train.Base.Floats(targetColumn)
	if err != nil {
		return nil, fmt.Errorf("train target: %w", err)
	}

	pool := s.candidates(candidates)
	best, scores, err := SelectRegressor(ctx, s.logger, pool, X, y, s.cfg.SplitRatio)
	if err != nil {
		return nil, err
	}

	runID := s.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &TrainingResult{RunID: runID, Scores: scores}
	runs := make([]model.ModelRun, len(scores))
	bestIdx := 0
	for i, sc := range scores {
		s.metrics.SetModelMAPE(sc.Name, sc.MAPE)
		runs[i] = model.ModelRun{RunID: result.RunID, Name: sc.Name, MAPE: sc.MAPE, MAE: sc.MAE}
		if sc.MAPE < scores[bestIdx].MAPE {
			bestIdx = i
		}
	}
	result.Best = scores[bestIdx].Name

	if s.recorder != nil {
		if err := s.recorder.RecordRuns(ctx, runs); err != nil {
			return nil, err
		}
	}

	if test != nil {
		xTest, err := test.Design(columns, 0)
		if err != nil {
			return nil, fmt.Errorf("test design: %w", err)
		}
		pred, err := best.Predict(ctx, xTest)
		if err != nil {
			return nil, fmt.Errorf("predicting test set: %w", err)
		}
		if err := test.AddColumn(PredictionColumn, pred); err != nil {
			return nil, err
		}
	}

	s.logger.Info("training finished",
		zap.String("run_id", result.RunID),
		zap.String("best", result.Best),
		zap.Int("features", len(columns)),
		zap.Int("rows", len(X)))
	return result, nil
}

// candidates wraps every candidate in LogTarget when configured and appends
// the stacked ensemble.
func (s *PredictionService) candidates(bases []Candidate) []Candidate {
	pool := make([]Candidate, 0, len(bases)+1)
	for _, c := range bases {
		pool = append(pool, s.wrap(c))
	}
	if s.cfg.Stacking && len(bases) >= 2 {
		pool = append(pool, s.wrap(Candidate{
			Name: "stacking",
			New:  func() Regressor { return NewStackingRegressor(bases) },
		}))
	}
	return pool
}

func (s *PredictionService) wrap(c Candidate) Candidate {
	if !s.cfg.LogTarget {
		return c
	}
	return Candidate{
		Name: c.Name,
		New:  func() Regressor { return &LogTarget{Inner: c.New()} },
	}
}
