package model

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// Active reports whether the job still occupies its dataset.
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobRunning
}

// TrainingJob is a fine-tuning run and its progress.
type TrainingJob struct {
	ID              string                 `json:"id"`
	ModelType       ModelType              `json:"modelType"`
	DatasetID       string                 `json:"datasetId"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	Status          JobStatus              `json:"status"`
	Progress        int                    `json:"progress"`
	Metrics         map[string]float64     `json:"metrics"`
	Error           string                 `json:"error,omitempty"`
	ModelID         string                 `json:"modelId,omitempty"`
	RunID           string                 `json:"-"`
	CreatedAt       time.Time              `json:"createdAt"`
	StartedAt       *time.Time             `json:"startedAt,omitempty"`
	FinishedAt      *time.Time             `json:"finishedAt,omitempty"`
}
