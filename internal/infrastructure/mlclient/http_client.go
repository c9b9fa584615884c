package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"exoplanet_service/internal/domain/model"
)

var _ model.MLClient = (*HTTPMLClient)(nil)

// HTTPMLClient talks to an external ML service over JSON/HTTP.
type HTTPMLClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPMLClient(baseURL string, timeout time.Duration) *HTTPMLClient {
	return &HTTPMLClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type classifyRequest struct {
	ModelType model.ModelType `json:"modelType"`
	Features  model.Features  `json:"features"`
}

// Classify получает предсказание для одного набора признаков
func (c *HTTPMLClient) Classify(ctx context.Context, modelType model.ModelType, features model.Features) (*model.Classification, error) {
	var resp struct {
		Class       string  `json:"class"`
		Probability float64 `json:"probability"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict", classifyRequest{ModelType: modelType, Features: features}, &resp); err != nil {
		return nil, err
	}

	label, ok := model.ParseLabel(resp.Class)
	if !ok {
		return nil, fmt.Errorf("ML service returned unknown class %q: %w", resp.Class, model.ErrUpstream)
	}
	return &model.Classification{Class: label, Probability: resp.Probability}, nil
}

func (c *HTTPMLClient) StartTraining(ctx context.Context, spec model.TrainingSpec) (string, error) {
	var resp struct {
		RunID string `json:"runId"`
	}
	if err := c.do(ctx, http.MethodPost, "/train", spec, &resp); err != nil {
		return "", err
	}
	if resp.RunID == "" {
		return "", fmt.Errorf("ML service did not return a run id: %w", model.ErrUpstream)
	}
	return resp.RunID, nil
}

func (c *HTTPMLClient) TrainingStatus(ctx context.Context, runID string) (*model.TrainingProgress, error) {
	var progress model.TrainingProgress
	if err := c.do(ctx, http.MethodGet, "/train/"+url.PathEscape(runID), nil, &progress); err != nil {
		return nil, err
	}
	switch progress.Status {
	case model.JobQueued, model.JobRunning, model.JobSucceeded, model.JobFailed, model.JobCancelled:
	default:
		return nil, fmt.Errorf("ML service returned unknown training status %q: %w", progress.Status, model.ErrUpstream)
	}
	return &progress, nil
}

func (c *HTTPMLClient) CancelTraining(ctx context.Context, runID string) error {
	err := c.do(ctx, http.MethodDelete, "/train/"+url.PathEscape(runID), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *HTTPMLClient) FeatureImportance(ctx context.Context, modelType model.ModelType) ([]model.FeatureImportance, error) {
	var resp struct {
		Features []model.FeatureImportance `json:"features"`
	}
	path := fmt.Sprintf("/models/%s/feature-importance", url.PathEscape(string(modelType)))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Features, nil
}

func (c *HTTPMLClient) ConfusionMatrix(ctx context.Context, modelType model.ModelType) (*model.MatrixData, error) {
	var matrix model.MatrixData
	path := fmt.Sprintf("/models/%s/confusion-matrix", url.PathEscape(string(modelType)))
	if err := c.do(ctx, http.MethodGet, path, nil, &matrix); err != nil {
		return nil, err
	}
	return &matrix, nil
}

func (c *HTTPMLClient) Diagnostics(ctx context.Context, kind model.DiagnosticType, obs model.ObservationRecord) (*model.ChartData, error) {
	var chart model.ChartData
	path := "/diagnostics/" + url.PathEscape(string(kind))
	if err := c.do(ctx, http.MethodPost, path, obs, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ML service returned status: %d %s", e.code, e.body)
}

func (e *statusError) Unwrap() error { return model.ErrUpstream }

func (c *HTTPMLClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal ML request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create ML request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ML service request failed: %v: %w", err, model.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ML response: %v: %w", err, model.ErrUpstream)
	}
	return nil
}
