package mlclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exoplanet_service/internal/catalog"
	"exoplanet_service/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPMLClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPMLClient(srv.URL+"/", 5*time.Second)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestHTTPClassify(t *testing.T) {
	var got classifyRequest
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]interface{}{"class": "false_positive", "probability": 0.72})
	})

	res, err := client.Classify(context.Background(), model.ModelDNN, model.Features{model.FieldPeriod: 3.5})
	require.NoError(t, err)
	assert.Equal(t, model.LabelFalsePositive, res.Class)
	assert.Equal(t, 0.72, res.Probability)
	assert.Equal(t, model.ModelDNN, got.ModelType)
	assert.Equal(t, 3.5, got.Features[model.FieldPeriod])
}

func TestHTTPClassifyRejectsUnknownClass(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"class": "PLANET", "probability": 0.5})
	})

	_, err := client.Classify(context.Background(), model.ModelXGBoost, model.Features{})
	assert.ErrorIs(t, err, model.ErrUpstream)
}

func TestHTTPErrorsAreUpstream(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := client.Classify(context.Background(), model.ModelXGBoost, model.Features{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUpstream)
	assert.Contains(t, err.Error(), "503")

	unreachable := NewHTTPMLClient("http://127.0.0.1:1", time.Second)
	_, err = unreachable.FeatureImportance(context.Background(), model.ModelXGBoost)
	assert.ErrorIs(t, err, model.ErrUpstream)
}

func TestHTTPTrainingLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/train", func(w http.ResponseWriter, r *http.Request) {
		var spec model.TrainingSpec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		assert.Equal(t, "job-1", spec.JobID)
		writeJSON(w, map[string]string{"runId": "run-9"})
	})
	mux.HandleFunc("/train/run-9", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, model.TrainingProgress{Status: model.JobRunning, Progress: 30})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/train/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	client := newTestServer(t, mux.ServeHTTP)
	ctx := context.Background()

	runID, err := client.StartTraining(ctx, model.TrainingSpec{JobID: "job-1", ModelType: model.ModelXGBoost})
	require.NoError(t, err)
	assert.Equal(t, "run-9", runID)

	progress, err := client.TrainingStatus(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, progress.Status)
	assert.Equal(t, 30, progress.Progress)

	assert.NoError(t, client.CancelTraining(ctx, runID))
	assert.NoError(t, client.CancelTraining(ctx, "gone"))
}

func TestHTTPInsights(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/xgboost/feature-importance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"features": []model.FeatureImportance{{Feature: "koi_prad", Importance: 0.3}}})
	})
	mux.HandleFunc("/models/xgboost/confusion-matrix", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.MatrixData{Labels: []string{"A", "B"}, Values: [][]float64{{1, 2}, {3, 4}}})
	})
	mux.HandleFunc("/diagnostics/odd-even", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, model.ChartData{Title: "odd-even", Series: []model.Series{{Name: "odd"}}})
	})
	client := newTestServer(t, mux.ServeHTTP)
	ctx := context.Background()

	fi, err := client.FeatureImportance(ctx, model.ModelXGBoost)
	require.NoError(t, err)
	assert.Equal(t, "koi_prad", fi[0].Feature)

	m, err := client.ConfusionMatrix(ctx, model.ModelXGBoost)
	require.NoError(t, err)
	assert.Equal(t, 4.0, m.Values[1][1])

	chart, err := client.Diagnostics(ctx, model.DiagnosticOddEven, model.ObservationRecord{ID: "obs-1"})
	require.NoError(t, err)
	assert.Equal(t, "odd", chart.Series[0].Name)
}

func TestStaticClassify(t *testing.T) {
	client := NewStaticMLClient(catalog.Default(), 10)

	for _, mt := range model.ModelTypes {
		res, err := client.Classify(context.Background(), mt, model.Features{})
		require.NoError(t, err)
		assert.Equal(t, model.LabelConfirmed, res.Class)
		assert.Equal(t, 0.89, res.Probability)
	}
}

func TestStaticTrainingAdvancesToCompletion(t *testing.T) {
	client := NewStaticMLClient(catalog.Default(), 25)
	ctx := context.Background()

	runID, err := client.StartTraining(ctx, model.TrainingSpec{JobID: "job-1", ModelType: model.ModelXGBoost})
	require.NoError(t, err)

	var last *model.TrainingProgress
	for i := 0; i < 4; i++ {
		p, err := client.TrainingStatus(ctx, runID)
		require.NoError(t, err)
		if last != nil {
			assert.GreaterOrEqual(t, p.Progress, last.Progress)
		}
		last = p
	}
	assert.Equal(t, model.JobSucceeded, last.Status)
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, 0.942, last.Metrics["accuracy"])

	_, err = client.TrainingStatus(ctx, runID)
	assert.ErrorIs(t, err, model.ErrUpstream)
}

func TestStaticTrainingCancel(t *testing.T) {
	client := NewStaticMLClient(catalog.Default(), 10)
	ctx := context.Background()

	runID, err := client.StartTraining(ctx, model.TrainingSpec{JobID: "job-2", ModelType: model.ModelDNN})
	require.NoError(t, err)
	other, err := client.StartTraining(ctx, model.TrainingSpec{JobID: "job-3", ModelType: model.ModelXGBoost})
	require.NoError(t, err)

	require.NoError(t, client.CancelTraining(ctx, runID))
	require.NoError(t, client.CancelTraining(ctx, runID), "cancelling twice is a no-op")

	_, err = client.TrainingStatus(ctx, runID)
	assert.ErrorIs(t, err, model.ErrUpstream)

	client.mu.Lock()
	assert.Len(t, client.runs, 1)
	client.mu.Unlock()

	p, err := client.TrainingStatus(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, p.Status)
}

func TestStaticInsightsAreCopies(t *testing.T) {
	client := NewStaticMLClient(catalog.Default(), 10)
	ctx := context.Background()

	fi, err := client.FeatureImportance(ctx, model.ModelXGBoost)
	require.NoError(t, err)
	fi[0].Importance = -1

	again, err := client.FeatureImportance(ctx, model.ModelXGBoost)
	require.NoError(t, err)
	assert.NotEqual(t, -1.0, again[0].Importance)

	m, err := client.ConfusionMatrix(ctx, model.ModelDNN)
	require.NoError(t, err)
	assert.Len(t, m.Values, 3)

	chart, err := client.Diagnostics(ctx, model.DiagnosticCentroidOffset, model.ObservationRecord{})
	require.NoError(t, err)
	assert.Empty(t, chart.Series)
}
