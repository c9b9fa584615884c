package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"exoplanet_service/internal/domain/model"
	"exoplanet_service/internal/domain/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ObservationService ingests KOI observations from CSV uploads and manual entry.
type ObservationService struct {
	repo *repository.ObservationRepository
	now  func() time.Time
}

func NewObservationService(repo *repository.ObservationRepository) *ObservationService {
	return &ObservationService{repo: repo, now: time.Now}
}

// UploadCSV stores every row of the file under one batch id, or none of them.
func (s *ObservationService) UploadCSV(ctx context.Context, r io.Reader) (*model.UploadResult, error) {
	rows, err := ParseObservations(r)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	createdAt := s.now().UTC()
	records := make([]model.ObservationRecord, 0, len(rows))
	for _, f := range rows {
		records = append(records, model.ObservationRecord{
			ID:        uuid.NewString(),
			BatchID:   batchID,
			Source:    model.SourceCSV,
			Features:  f,
			CreatedAt: createdAt,
		})
	}

	if err := s.repo.InsertBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store uploaded observations: %w", err)
	}

	log.WithFields(log.Fields{"batch_id": batchID, "records": len(records)}).Info("observations uploaded")
	return &model.UploadResult{RecordCount: len(records), BatchID: batchID}, nil
}

// SubmitManual validates and stores one hand-entered observation.
func (s *ObservationService) SubmitManual(ctx context.Context, values map[string]float64) (string, error) {
	f, err := CheckFeatures(values)
	if err != nil {
		return "", err
	}

	rec := model.ObservationRecord{
		ID:        uuid.NewString(),
		Source:    model.SourceManual,
		Features:  f,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to store observation: %w", err)
	}
	return rec.ID, nil
}

func (s *ObservationService) Get(ctx context.Context, id string) (model.ObservationRecord, error) {
	if id == "" {
		return model.ObservationRecord{}, model.Invalid("objectId", "is required")
	}
	return s.repo.Get(ctx, id)
}
