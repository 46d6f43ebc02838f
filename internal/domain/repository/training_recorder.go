package repository

import (
	"context"
	"fmt"
	"housing_features/internal/domain/model"

	"github.com/jmoiron/sqlx"
)

// TrainingRecorder persists the validation scores of a model selection run.
type TrainingRecorder interface {
	RecordRuns(ctx context.Context, runs []model.ModelRun) error
}

type PostgresTrainingRecorder struct {
	db *sqlx.DB
}

func NewPostgresTrainingRecorder(db *sqlx.DB) *PostgresTrainingRecorder {
	return &PostgresTrainingRecorder{db: db}
}

func (r *PostgresTrainingRecorder) RecordRuns(ctx context.Context, runs []model.ModelRun) error {
	if len(runs) == 0 {
		return nil
	}
	const query = `
		INSERT INTO model_runs (run_id, name, mape, mae)
		VALUES (:run_id, :name, :mape, :mae)`

	if _, err := r.db.NamedExecContext(ctx, query, runs); err != nil {
		return fmt.Errorf("failed to record model runs: %w", err)
	}
	return nil
}

// BestRun returns the lowest-MAPE model of a run.
func (r *PostgresTrainingRecorder) BestRun(ctx context.Context, runID string) (model.ModelRun, error) {
	const query = `
		SELECT run_id, name, mape, mae
		FROM model_runs
		WHERE run_id = $1
		ORDER BY mape
		LIMIT 1`

	var run model.ModelRun
	if err := r.db.GetContext(ctx, &run, query, runID); err != nil {
		return model.ModelRun{}, fmt.Errorf("failed to query best run: %w", err)
	}
	return run, nil
}
