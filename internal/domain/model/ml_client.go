package model

// ModelInfo описывает модель, доступную в ML сервисе
type ModelInfo struct {
	Name    string             `json:"name"`
	Kind    string             `json:"kind"` // xgb, catboost, lgbm, rf
	Params  map[string]any     `json:"params"`
	Metrics map[string]float64 `json:"metrics"`
}

// RegressorSpec selects a remote regressor and its hyper-parameters.
type RegressorSpec struct {
	Name   string         `json:"name" yaml:"name"`
	Kind   string         `json:"kind" yaml:"kind"`
	Params map[string]any `json:"params" yaml:"params"`
}

type FitRequest struct {
	Kind     string         `json:"kind"`
	Params   map[string]any `json:"params"`
	Features [][]float64    `json:"features"`
	Target   []float64      `json:"target"`
}

type FitResponse struct {
	ModelID string `json:"model_id"`
}

type PredictRequest struct {
	ModelID  string      `json:"model_id"`
	Features [][]float64 `json:"features"`
}

type PredictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// ModelRun is one evaluated model of a training run.
type ModelRun struct {
	RunID string  `db:"run_id"`
	Name  string  `db:"name"`
	MAPE  float64 `db:"mape"`
	MAE   float64 `db:"mae"`
}
