package mlclient

import (
	"context"
	"fmt"
	"sync"

	"exoplanet_service/internal/catalog"
	"exoplanet_service/internal/domain/model"
)

var _ model.MLClient = (*StaticMLClient)(nil)

// StaticMLClient is the built-in backend used when no ML service is configured.
// It answers with fixed values and the snapshots from the model catalog.
type StaticMLClient struct {
	catalog *catalog.Catalog
	step    int

	mu   sync.Mutex
	runs map[string]*staticRun
}

type staticRun struct {
	modelType model.ModelType
	progress  int
}

// Fixed classification returned for every prediction.
const (
	StaticClass       = model.LabelConfirmed
	StaticProbability = 0.89
)

// NewStaticMLClient creates a backend whose training runs advance by step
// percent on every status poll.
func NewStaticMLClient(c *catalog.Catalog, step int) *StaticMLClient {
	if step <= 0 {
		step = 10
	}
	return &StaticMLClient{
		catalog: c,
		step:    step,
		runs:    make(map[string]*staticRun),
	}
}

func (c *StaticMLClient) base(t model.ModelType) (catalog.Entry, error) {
	e, ok := c.catalog.Base(t)
	if !ok {
		return catalog.Entry{}, fmt.Errorf("no base model of type %s: %w", t, model.ErrNotFound)
	}
	return e, nil
}

func (c *StaticMLClient) Classify(ctx context.Context, modelType model.ModelType, features model.Features) (*model.Classification, error) {
	if _, err := c.base(modelType); err != nil {
		return nil, err
	}
	return &model.Classification{Class: StaticClass, Probability: StaticProbability}, nil
}

func (c *StaticMLClient) StartTraining(ctx context.Context, spec model.TrainingSpec) (string, error) {
	if _, err := c.base(spec.ModelType); err != nil {
		return "", err
	}

	runID := "static-" + spec.JobID
	c.mu.Lock()
	c.runs[runID] = &staticRun{modelType: spec.ModelType}
	c.mu.Unlock()
	return runID, nil
}

func (c *StaticMLClient) TrainingStatus(ctx context.Context, runID string) (*model.TrainingProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.runs[runID]
	if !ok {
		return nil, fmt.Errorf("unknown training run %s: %w", runID, model.ErrUpstream)
	}
	run.progress += c.step
	if run.progress < 100 {
		return &model.TrainingProgress{Status: model.JobRunning, Progress: run.progress, Metrics: map[string]float64{}}, nil
	}

	run.progress = 100
	delete(c.runs, runID)
	e, err := c.base(run.modelType)
	if err != nil {
		return nil, err
	}
	return &model.TrainingProgress{Status: model.JobSucceeded, Progress: 100, Metrics: e.Metrics.AsMap()}, nil
}

// CancelTraining forgets the run; later status calls report it as unknown.
func (c *StaticMLClient) CancelTraining(ctx context.Context, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runs, runID)
	return nil
}

func (c *StaticMLClient) FeatureImportance(ctx context.Context, modelType model.ModelType) ([]model.FeatureImportance, error) {
	e, err := c.base(modelType)
	if err != nil {
		return nil, err
	}
	out := make([]model.FeatureImportance, len(e.FeatureImportance))
	copy(out, e.FeatureImportance)
	return out, nil
}

func (c *StaticMLClient) ConfusionMatrix(ctx context.Context, modelType model.ModelType) (*model.MatrixData, error) {
	e, err := c.base(modelType)
	if err != nil {
		return nil, err
	}
	m := model.MatrixData{Labels: append([]string(nil), e.ConfusionMatrix.Labels...)}
	for _, row := range e.ConfusionMatrix.Values {
		m.Values = append(m.Values, append([]float64(nil), row...))
	}
	return &m, nil
}

// Diagnostics needs pixel-level photometry, which only a real ML service has.
func (c *StaticMLClient) Diagnostics(ctx context.Context, kind model.DiagnosticType, obs model.ObservationRecord) (*model.ChartData, error) {
	return &model.ChartData{Title: string(kind), Series: []model.Series{}}, nil
}
