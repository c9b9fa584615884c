package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"exoplanet_service/internal/domain/model"
	"exoplanet_service/internal/domain/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type PredictionService struct {
	observations *repository.ObservationRepository
	mlClient     model.MLClient
	recorder     repository.PredictionRecorder
	saveData     bool
	now          func() time.Time
}

func NewPredictionService(
	observations *repository.ObservationRepository,
	mlClient model.MLClient,
	recorder repository.PredictionRecorder,
	saveData bool,
) *PredictionService {
	return &PredictionService{
		observations: observations,
		mlClient:     mlClient,
		recorder:     recorder,
		saveData:     saveData,
		now:          time.Now,
	}
}

// PredictionInput selects what to classify: a stored observation or an
// inline feature vector, never both.
type PredictionInput struct {
	ObservationID string             `json:"observationId"`
	Features      map[string]float64 `json:"features"`
}

// Predict получает предсказание для одного наблюдения
func (s *PredictionService) Predict(ctx context.Context, modelType string, in PredictionInput) (*model.PredictionResult, error) {
	mt, err := model.ParseModelType(modelType)
	if err != nil {
		return nil, model.Invalid("modelType", "%v", err)
	}

	features, err := s.resolveInput(ctx, in)
	if err != nil {
		return nil, err
	}

	// Получаем предсказание от ML сервиса
	cls, err := s.mlClient.Classify(ctx, mt, features)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	if err := checkClassification(cls); err != nil {
		return nil, err
	}

	result := &model.PredictionResult{
		ID:            uuid.NewString(),
		Class:         cls.Class,
		Probability:   cls.Probability,
		Confidence:    model.ConfidenceFor(cls.Probability),
		ModelType:     mt,
		ObservationID: in.ObservationID,
		CreatedAt:     s.now().UTC(),
	}

	if s.saveData && s.recorder != nil {
		if err := s.recorder.RecordPrediction(ctx, *result, features); err != nil {
			log.WithError(err).WithField("prediction_id", result.ID).Warn("failed to record prediction")
		}
	}
	return result, nil
}

func (s *PredictionService) resolveInput(ctx context.Context, in PredictionInput) (model.Features, error) {
	switch {
	case in.ObservationID != "" && len(in.Features) > 0:
		return nil, model.Invalid("inputData", "give either observationId or features, not both")
	case in.ObservationID != "":
		rec, err := s.observations.Get(ctx, in.ObservationID)
		if err != nil {
			return nil, err
		}
		return rec.Features, nil
	case len(in.Features) > 0:
		return CheckFeatures(in.Features)
	default:
		return nil, model.Invalid("inputData", "observationId or features is required")
	}
}

// checkClassification rejects answers outside the closed label set or the unit interval.
func checkClassification(c *model.Classification) error {
	if c == nil {
		return fmt.Errorf("empty classification: %w", model.ErrUpstream)
	}
	if _, ok := model.ParseLabel(string(c.Class)); !ok {
		return fmt.Errorf("unknown class %q: %w", c.Class, model.ErrUpstream)
	}
	if math.IsNaN(c.Probability) || c.Probability < 0 || c.Probability > 1 {
		return fmt.Errorf("probability %v outside [0,1]: %w", c.Probability, model.ErrUpstream)
	}
	return nil
}
