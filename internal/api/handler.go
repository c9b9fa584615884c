package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"exoplanet_service/internal/core"
	"exoplanet_service/internal/domain/model"

	"github.com/gin-gonic/gin"
)

// Services groups everything the handlers call into.
type Services struct {
	Observations   *core.ObservationService
	Datasets       *core.DatasetService
	Predictions    *core.PredictionService
	Training       *core.TrainingRunner
	Models         *core.ModelService
	Visualizations *core.VisualizationService
	// Ping reports storage health for /healthz; nil skips the check.
	Ping func(ctx context.Context) error
}

type Handler struct {
	svc Services
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

// upload is the file part of a request: a multipart "file" field or the raw body.
type upload struct {
	name    string
	purpose string
	body    io.ReadCloser
}

func readUpload(c *gin.Context, defaultName string) (*upload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		name := c.Query("name")
		if name == "" {
			name = defaultName
		}
		return &upload{name: name, purpose: c.Query("purpose"), body: c.Request.Body}, nil
	}

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, model.Invalid("file", "is required")
	}
	if err != nil {
		return nil, multipartError(err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	return &upload{name: fh.Filename, purpose: c.PostForm("purpose"), body: f}, nil
}

func multipartError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	return model.Invalid("file", "malformed multipart body: %v", err)
}

func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return model.Invalid("", "invalid JSON body: %v", err)
	}
	return nil
}

// UploadObservations handles POST /api/upload/csv.
func (h *Handler) UploadObservations(c *gin.Context) {
	up, err := readUpload(c, "observations.csv")
	if err != nil {
		fail(c, err)
		return
	}
	defer up.body.Close()

	res, err := h.svc.Observations.UploadCSV(c.Request.Context(), up.body)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"data": res})
}

// SubmitManual handles POST /api/upload/manual.
func (h *Handler) SubmitManual(c *gin.Context) {
	var raw map[string]*float64
	if err := bindJSON(c, &raw); err != nil {
		fail(c, err)
		return
	}
	values, err := featureValues(raw)
	if err != nil {
		fail(c, err)
		return
	}

	id, err := h.svc.Observations.SubmitManual(c.Request.Context(), values)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"data": gin.H{"id": id}})
}

func (h *Handler) UploadDataset(c *gin.Context) {
	up, err := readUpload(c, "dataset.csv")
	if err != nil {
		fail(c, err)
		return
	}
	defer up.body.Close()

	d, err := h.svc.Datasets.Upload(c.Request.Context(), up.name, up.purpose, up.body)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"datasetId": d.ID, "dataset": d})
}

func (h *Handler) DeleteDataset(c *gin.Context) {
	deleted, err := h.svc.Datasets.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) ListDatasets(c *gin.Context) {
	datasets, err := h.svc.Datasets.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"datasets": datasets})
}

type predictRequest struct {
	ModelType string          `json:"modelType"`
	InputData json.RawMessage `json:"inputData"`
}

// predictionInput accepts {"observationId"}, {"features"} or a bare feature map.
func predictionInput(raw json.RawMessage) (core.PredictionInput, error) {
	var in core.PredictionInput
	if len(raw) == 0 || string(raw) == "null" {
		return in, nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return in, model.Invalid("inputData", "must be an object")
	}
	_, byID := keys["observationId"]
	_, byFeatures := keys["features"]
	if byID || byFeatures {
		var body struct {
			ObservationID string              `json:"observationId"`
			Features      map[string]*float64 `json:"features"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return in, model.Invalid("inputData", "%v", err)
		}
		features, err := featureValues(body.Features)
		if err != nil {
			return in, err
		}
		return core.PredictionInput{ObservationID: body.ObservationID, Features: features}, nil
	}

	var values map[string]*float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return in, model.Invalid("inputData", "feature values must be numbers")
	}
	features, err := featureValues(values)
	if err != nil {
		return in, err
	}
	in.Features = features
	return in, nil
}

// featureValues dereferences decoded feature values; a JSON null is a validation error.
func featureValues(raw map[string]*float64) (map[string]float64, error) {
	if raw == nil {
		return nil, nil
	}
	values := make(map[string]float64, len(raw))
	for _, name := range slices.Sorted(maps.Keys(raw)) {
		v := raw[name]
		if v == nil {
			return nil, model.Invalid(name, "value must be a number, got null")
		}
		values[name] = *v
	}
	return values, nil
}

func (h *Handler) Predict(c *gin.Context) {
	var req predictRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	in, err := predictionInput(req.InputData)
	if err != nil {
		fail(c, err)
		return
	}

	prediction, err := h.svc.Predictions.Predict(c.Request.Context(), req.ModelType, in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"prediction": prediction})
}

func (h *Handler) LightCurve(c *gin.Context) {
	chart, err := h.svc.Visualizations.LightCurve(c.Request.Context(), c.Query("objectId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"chartData": chart})
}

func (h *Handler) ModelFit(c *gin.Context) {
	chart, err := h.svc.Visualizations.ModelFit(c.Request.Context(), c.Query("objectId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"chartData": chart})
}

func (h *Handler) FeatureImportance(c *gin.Context) {
	features, url, err := h.svc.Visualizations.FeatureImportance(c.Request.Context(), c.Query("modelType"))
	if err != nil {
		fail(c, err)
		return
	}
	payload := gin.H{"features": features}
	if url != "" {
		payload["chartUrl"] = url
	}
	respond(c, http.StatusOK, payload)
}

func (h *Handler) CorrelationMatrix(c *gin.Context) {
	m, err := h.svc.Visualizations.CorrelationMatrix(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"matrixData": m})
}

func (h *Handler) Distributions(c *gin.Context) {
	dists, err := h.svc.Visualizations.Distributions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"distributionData": dists})
}

func (h *Handler) ConfusionMatrix(c *gin.Context) {
	m, err := h.svc.Visualizations.ConfusionMatrix(c.Request.Context(), c.Query("modelType"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"matrixData": m})
}

func (h *Handler) Diagnostics(c *gin.Context) {
	chart, err := h.svc.Visualizations.Diagnostics(c.Request.Context(), c.Param("type"), c.Query("objectId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"chartData": chart})
}

func (h *Handler) StartFineTuning(c *gin.Context) {
	var req core.FineTuneRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	job, err := h.svc.Training.Start(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"jobId": job.ID, "job": job})
}

func (h *Handler) TrainingStatus(c *gin.Context) {
	job, err := h.svc.Training.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		fail(c, err)
		return
	}

	metrics := job.Metrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	payload := gin.H{
		"jobId":    job.ID,
		"status":   job.Status,
		"progress": job.Progress,
		"metrics":  metrics,
	}
	if job.Error != "" {
		payload["error"] = job.Error
	}
	if job.ModelID != "" {
		payload["modelId"] = job.ModelID
	}
	respond(c, http.StatusOK, payload)
}

func (h *Handler) CancelFineTuning(c *gin.Context) {
	job, err := h.svc.Training.Cancel(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"jobId": job.ID, "job": job})
}

func (h *Handler) ListTrainingJobs(c *gin.Context) {
	jobs, err := h.svc.Training.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"jobs": jobs})
}

func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.svc.Models.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"models": models})
}

func (h *Handler) ModelMetrics(c *gin.Context) {
	metrics, err := h.svc.Models.Metrics(c.Request.Context(), c.Param("modelId"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"modelId": c.Param("modelId"), "metrics": metrics})
}

func (h *Handler) Health(c *gin.Context) {
	if h.svc.Ping != nil {
		if err := h.svc.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   ErrorBody{Code: CodeUnavailable, Message: "database is not reachable"},
			})
			return
		}
	}
	respond(c, http.StatusOK, gin.H{"status": "ok"})
}
