package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"exoplanet_service/internal/domain/model"

	"github.com/jmoiron/sqlx"
)

// PredictionRecorder keeps served predictions so they can feed later retraining.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, result model.PredictionResult, features model.Features) error
}

type SQLPredictionRecorder struct {
	db *sqlx.DB
}

func NewSQLPredictionRecorder(db *sqlx.DB) *SQLPredictionRecorder {
	return &SQLPredictionRecorder{db: db}
}

func (r *SQLPredictionRecorder) RecordPrediction(
	ctx context.Context,
	result model.PredictionResult,
	features model.Features,
) error {
	const query = `
		INSERT INTO predictions (
			id, model_type, label, probability, confidence,
			observation_id, features, recorded_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?
		)`

	// Сериализация признаков в JSON
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(query),
		result.ID, string(result.ModelType), string(result.Class), result.Probability,
		string(result.Confidence), result.ObservationID, string(featuresJSON),
		toMillis(result.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record prediction: %w", err)
	}
	return nil
}
