package model

import "context"

// MLClient определяет интерфейс для взаимодействия с ML сервисом.
// Everything model-owned goes through it: inference, training and model insights.
type MLClient interface {
	// Classify returns the raw class and probability for one feature vector.
	Classify(ctx context.Context, modelType ModelType, features Features) (*Classification, error)

	// StartTraining submits a fine-tuning run and returns the backend's run id.
	StartTraining(ctx context.Context, spec TrainingSpec) (string, error)

	// TrainingStatus reports the state of a run started with StartTraining.
	TrainingStatus(ctx context.Context, runID string) (*TrainingProgress, error)

	// CancelTraining asks the backend to stop a run. Unknown runs are not an error.
	CancelTraining(ctx context.Context, runID string) error

	// FeatureImportance returns the contribution of each input feature.
	FeatureImportance(ctx context.Context, modelType ModelType) ([]FeatureImportance, error)

	// ConfusionMatrix returns the evaluation confusion matrix of a model.
	ConfusionMatrix(ctx context.Context, modelType ModelType) (*MatrixData, error)

	// Diagnostics returns a pixel or photometry level diagnostic plot for an observation.
	Diagnostics(ctx context.Context, kind DiagnosticType, obs ObservationRecord) (*ChartData, error)
}

// Classification is what the ML backend answers for a prediction.
type Classification struct {
	Class       Label   `json:"class"`
	Probability float64 `json:"probability"`
}

// TrainingSpec is everything the backend needs to run a fine-tuning job.
type TrainingSpec struct {
	JobID           string                 `json:"jobId"`
	ModelType       ModelType              `json:"modelType"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	DatasetID       string                 `json:"datasetId"`
	DatasetPath     string                 `json:"datasetPath"`
}

// TrainingProgress is one status report of a backend training run.
type TrainingProgress struct {
	Status   JobStatus          `json:"status"`
	Progress int                `json:"progress"`
	Metrics  map[string]float64 `json:"metrics"`
	Error    string             `json:"error,omitempty"`
}
