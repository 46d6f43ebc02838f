package mlclient

import (
	"context"
	"fmt"
	"housing_features/internal/core"
	"housing_features/internal/domain/model"
	"net/http"
)

// GetAvailableModels возвращает список доступных моделей
func (c *HTTPMLClient) GetAvailableModels(ctx context.Context) ([]model.ModelInfo, error) {
	var models []model.ModelInfo
	if err := c.do(ctx, http.MethodGet, "/models", nil, &models); err != nil {
		return nil, fmt.Errorf("error getting models: %w", err)
	}
	return models, nil
}

// RemoteRegressor trains and serves one model inside the ML service. Only the
// returned model id is kept locally.
type RemoteRegressor struct {
	client  *HTTPMLClient
	spec    model.RegressorSpec
	modelID string
}

var _ core.Regressor = (*RemoteRegressor)(nil)

func NewRemoteRegressor(client *HTTPMLClient, spec model.RegressorSpec) *RemoteRegressor {
	return &RemoteRegressor{client: client, spec: spec}
}

func (r *RemoteRegressor) ModelID() string {
	return r.modelID
}

func (r *RemoteRegressor) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("%d rows for %d targets: %w", len(X), len(y), model.ErrInvalidArgument)
	}
	resp, err := r.client.Fit(ctx, model.FitRequest{
		Kind:     r.spec.Kind,
		Params:   r.spec.Params,
		Features: X,
		Target:   y,
	})
	if err != nil {
		return fmt.Errorf("remote %s: %w", r.spec.Name, err)
	}
	r.modelID = resp.ModelID
	return nil
}

func (r *RemoteRegressor) Predict(ctx context.Context, X [][]float64) ([]float64, error) {
	if r.modelID == "" {
		return nil, fmt.Errorf("remote %s: %w", r.spec.Name, model.ErrNotFitted)
	}
	resp, err := r.client.Predict(ctx, model.PredictRequest{ModelID: r.modelID, Features: X})
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", r.spec.Name, err)
	}
	if len(resp.Predictions) != len(X) {
		return nil, fmt.Errorf("remote %s returned %d predictions for %d rows: %w",
			r.spec.Name, len(resp.Predictions), len(X), model.ErrSchemaMismatch)
	}
	return resp.Predictions, nil
}

// Candidates wraps each RegressorSpec as a selectable regressor factory.
func Candidates(client *HTTPMLClient, specs []model.RegressorSpec) []core.Candidate {
	out := make([]core.Candidate, 0, len(specs))
	for _, spec := range specs {
		spec := spec
		out = append(out, core.Candidate{
			Name: spec.Name,
			New:  func() core.Regressor { return NewRemoteRegressor(client, spec) },
		})
	}
	return out
}
