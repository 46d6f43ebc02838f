package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"housing_features/internal/domain/model"
	"io"
	"net/http"
	"strings"
	"time"
)

type HTTPMLClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPMLClient(endpoint string, timeout time.Duration) *HTTPMLClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMLClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fit отправляет обучающую выборку в ML сервис и возвращает id модели
func (c *HTTPMLClient) Fit(ctx context.Context, req model.FitRequest) (*model.FitResponse, error) {
	var resp model.FitResponse
	if err := c.do(ctx, http.MethodPost, "/fit", req, &resp); err != nil {
		return nil, err
	}
	if resp.ModelID == "" {
		return nil, fmt.Errorf("ML service returned empty model id")
	}
	return &resp, nil
}

func (c *HTTPMLClient) Predict(ctx context.Context, req model.PredictRequest) (*model.PredictResponse, error) {
	var resp model.PredictResponse
	if err := c.do(ctx, http.MethodPost, "/predict", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPMLClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal ML request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("failed to create ML request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ML service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ML service %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ML response: %w", err)
	}
	return nil
}
