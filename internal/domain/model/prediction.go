package model

import (
	"fmt"
	"strings"
	"time"
)

type ModelType string

const (
	ModelXGBoost ModelType = "xgboost"
	ModelDNN     ModelType = "dnn"
)

// ModelTypes is the closed set of model variants.
var ModelTypes = []ModelType{ModelXGBoost, ModelDNN}

func ParseModelType(s string) (ModelType, error) {
	switch ModelType(strings.ToLower(strings.TrimSpace(s))) {
	case ModelXGBoost:
		return ModelXGBoost, nil
	case ModelDNN:
		return ModelDNN, nil
	}
	return "", fmt.Errorf("unknown model type %q, expected one of xgboost, dnn", s)
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// ConfidenceFor buckets a probability into a coarse tier.
func ConfidenceFor(p float64) Confidence {
	switch {
	case p >= 0.8:
		return ConfidenceHigh
	case p >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// PredictionResult is the classification of one observation.
type PredictionResult struct {
	ID            string     `json:"id"`
	Class         Label      `json:"class"`
	Probability   float64    `json:"probability"`
	Confidence    Confidence `json:"confidence"`
	ModelType     ModelType  `json:"modelType"`
	ObservationID string     `json:"observationId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ModelMetrics is a static performance snapshot of a model.
type ModelMetrics struct {
	Accuracy  float64 `json:"accuracy" yaml:"accuracy"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1Score   float64 `json:"f1Score" yaml:"f1Score"`
}

// AsMap returns the metrics keyed the way training jobs report them.
func (m ModelMetrics) AsMap() map[string]float64 {
	return map[string]float64{
		"accuracy":  m.Accuracy,
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1Score":   m.F1Score,
	}
}

// MetricsFromMap reads the four standard keys; missing keys are zero.
func MetricsFromMap(m map[string]float64) ModelMetrics {
	return ModelMetrics{
		Accuracy:  m["accuracy"],
		Precision: m["precision"],
		Recall:    m["recall"],
		F1Score:   m["f1Score"],
	}
}

// ModelInfo содержит информацию о модели
type ModelInfo struct {
	ID              string       `json:"id" yaml:"id"`
	Type            ModelType    `json:"type" yaml:"type"`
	Name            string       `json:"name" yaml:"name"`
	Description     string       `json:"description" yaml:"description"`
	TrainingSamples int          `json:"trainingSamples" yaml:"trainingSamples"`
	LastUpdated     string       `json:"lastUpdated" yaml:"lastUpdated"`
	Metrics         ModelMetrics `json:"metrics" yaml:"metrics"`
}
