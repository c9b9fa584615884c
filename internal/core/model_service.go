package core

import (
	"context"
	"errors"
	"fmt"

	"exoplanet_service/internal/catalog"
	"exoplanet_service/internal/domain/model"
	"exoplanet_service/internal/domain/repository"
)

// ModelService answers questions about base and fine-tuned models.
type ModelService struct {
	catalog *catalog.Catalog
	jobs    *repository.JobRepository
}

func NewModelService(c *catalog.Catalog, jobs *repository.JobRepository) *ModelService {
	return &ModelService{catalog: c, jobs: jobs}
}

// List returns the catalog models followed by models produced by fine-tuning.
func (s *ModelService) List(ctx context.Context) ([]model.ModelInfo, error) {
	models := s.catalog.Models()

	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.Status != model.JobSucceeded || j.ModelID == "" {
			continue
		}
		models = append(models, fineTunedInfo(s.catalog, j))
	}
	return models, nil
}

// Metrics returns the snapshot for a catalog model or a fine-tuned one.
func (s *ModelService) Metrics(ctx context.Context, modelID string) (model.ModelMetrics, error) {
	if e, ok := s.catalog.Get(modelID); ok {
		return e.Metrics, nil
	}

	job, err := s.jobs.FindByModelID(ctx, modelID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ModelMetrics{}, fmt.Errorf("model %s: %w", modelID, model.ErrNotFound)
	}
	if err != nil {
		return model.ModelMetrics{}, err
	}
	return model.MetricsFromMap(job.Metrics), nil
}

func fineTunedInfo(c *catalog.Catalog, j model.TrainingJob) model.ModelInfo {
	info := model.ModelInfo{
		ID:      j.ModelID,
		Type:    j.ModelType,
		Name:    string(j.ModelType) + " (fine-tuned)",
		Metrics: model.MetricsFromMap(j.Metrics),
	}
	if base, ok := c.Base(j.ModelType); ok {
		info.Name = base.Name + " (fine-tuned)"
	}
	if j.FinishedAt != nil {
		info.LastUpdated = j.FinishedAt.Format("2006-01-02")
	}
	info.Description = "Fine-tuned on dataset " + j.DatasetID
	return info
}
