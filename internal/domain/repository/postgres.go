package repository

import (
	"context"
	"database/sql"
	"fmt"
	"housing_features/internal/domain/model"
	"math"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const featureSchema = `
	CREATE TABLE IF NOT EXISTS feature_values (
		run_id     UUID NOT NULL,
		dataset    TEXT NOT NULL,
		record_id  TEXT NOT NULL,
		feature    TEXT NOT NULL,
		value      DOUBLE PRECISION,
		PRIMARY KEY (run_id, dataset, record_id, feature)
	);
	CREATE TABLE IF NOT EXISTS model_runs (
		run_id      UUID NOT NULL,
		name        TEXT NOT NULL,
		mape        DOUBLE PRECISION NOT NULL,
		mae         DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

func OpenPostgres(connStr string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// FeatureStore keeps assembled feature matrices in long format, one row per
// (record, feature), so runs with different feature sets share one table.
type FeatureStore struct {
	db *sqlx.DB
}

func NewFeatureStore(db *sqlx.DB) *FeatureStore {
	return &FeatureStore{db: db}
}

func (s *FeatureStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, featureSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveFeatures writes every feature column of m under runID in a single
// transaction. Null features are stored as SQL NULL.
func (s *FeatureStore) SaveFeatures(ctx context.Context, runID uuid.UUID, dataset string, m *model.FeatureMatrix) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO feature_values (run_id, dataset, record_id, feature, value)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := m.IDs()
	for _, name := range m.Features() {
		values, _ := m.Column(name)
		for i, id := range ids {
			v := sql.NullFloat64{Float64: values[i], Valid: !math.IsNaN(values[i])}
			if _, err = stmt.ExecContext(ctx, runID.String(), dataset, id, name, v); err != nil {
				return fmt.Errorf("failed to insert %s/%s: %w", id, name, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit features: %w", err)
	}
	return nil
}

type featureRow struct {
	RecordID string          `db:"record_id"`
	Feature  string          `db:"feature"`
	Value    sql.NullFloat64 `db:"value"`
}

// LoadFeatures returns record_id -> feature -> value for one stored run; NULL
// comes back as NaN.
func (s *FeatureStore) LoadFeatures(ctx context.Context, runID uuid.UUID, dataset string) (map[string]map[string]float64, error) {
	const query = `
		SELECT record_id, feature, value
		FROM feature_values
		WHERE run_id = $1 AND dataset = $2
		ORDER BY record_id, feature`

	var rows []featureRow
	if err := s.db.SelectContext(ctx, &rows, query, runID.String(), dataset); err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}

	out := make(map[string]map[string]float64)
	for _, r := range rows {
		if out[r.RecordID] == nil {
			out[r.RecordID] = make(map[string]float64)
		}
		v := math.NaN()
		if r.Value.Valid {
			v = r.Value.Float64
		}
		out[r.RecordID][r.Feature] = v
	}
	return out, nil
}
