package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"exoplanet_service/internal/domain/model"

	"github.com/jmoiron/sqlx"
)

type ObservationRepository struct {
	db *sqlx.DB
}

func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

type observationRow struct {
	ID          string   `db:"id"`
	BatchID     string   `db:"batch_id"`
	Source      string   `db:"source"`
	Period      float64  `db:"koi_period"`
	Duration    float64  `db:"koi_duration"`
	Depth       float64  `db:"koi_depth"`
	PlanetRad   float64  `db:"koi_prad"`
	SNR         float64  `db:"koi_model_snr"`
	NumTransits *float64 `db:"koi_num_transits"`
	StellarRad  *float64 `db:"koi_srad"`
	StellarTemp *float64 `db:"koi_steff"`
	StellarLogG *float64 `db:"koi_slogg"`
	Impact      *float64 `db:"koi_impact"`
	CreatedAt   int64    `db:"created_at"`
}

func optional(f model.Features, name string) *float64 {
	if v, ok := f[name]; ok {
		return &v
	}
	return nil
}

func newObservationRow(rec model.ObservationRecord) observationRow {
	f := rec.Features
	return observationRow{
		ID:          rec.ID,
		BatchID:     rec.BatchID,
		Source:      string(rec.Source),
		Period:      f[model.FieldPeriod],
		Duration:    f[model.FieldDuration],
		Depth:       f[model.FieldDepth],
		PlanetRad:   f[model.FieldPlanetRad],
		SNR:         f[model.FieldSNR],
		NumTransits: optional(f, model.FieldNumTransits),
		StellarRad:  optional(f, model.FieldStellarRad),
		StellarTemp: optional(f, model.FieldStellarTemp),
		StellarLogG: optional(f, model.FieldStellarLogG),
		Impact:      optional(f, model.FieldImpact),
		CreatedAt:   toMillis(rec.CreatedAt),
	}
}

func (r observationRow) record() model.ObservationRecord {
	f := model.Features{
		model.FieldPeriod:    r.Period,
		model.FieldDuration:  r.Duration,
		model.FieldDepth:     r.Depth,
		model.FieldPlanetRad: r.PlanetRad,
		model.FieldSNR:       r.SNR,
	}
	set := func(name string, v *float64) {
		if v != nil {
			f[name] = *v
		}
	}
	set(model.FieldNumTransits, r.NumTransits)
	set(model.FieldStellarRad, r.StellarRad)
	set(model.FieldStellarTemp, r.StellarTemp)
	set(model.FieldStellarLogG, r.StellarLogG)
	set(model.FieldImpact, r.Impact)

	return model.ObservationRecord{
		ID:        r.ID,
		BatchID:   r.BatchID,
		Source:    model.ObservationSource(r.Source),
		Features:  f,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

const insertObservation = `
	INSERT INTO observations (
		id, batch_id, source,
		koi_period, koi_duration, koi_depth, koi_prad, koi_model_snr,
		koi_num_transits, koi_srad, koi_steff, koi_slogg, koi_impact,
		created_at
	) VALUES (
		:id, :batch_id, :source,
		:koi_period, :koi_duration, :koi_depth, :koi_prad, :koi_model_snr,
		:koi_num_transits, :koi_srad, :koi_steff, :koi_slogg, :koi_impact,
		:created_at
	)`

const selectObservation = `
	SELECT
		id, batch_id, source,
		koi_period, koi_duration, koi_depth, koi_prad, koi_model_snr,
		koi_num_transits, koi_srad, koi_steff, koi_slogg, koi_impact,
		created_at
	FROM observations`

// InsertBatch stores all records or none of them.
func (r *ObservationRepository) InsertBatch(ctx context.Context, records []model.ObservationRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if _, err := tx.NamedExecContext(ctx, insertObservation, newObservationRow(rec)); err != nil {
			return fmt.Errorf("failed to insert observation %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observations: %w", err)
	}
	return nil
}

func (r *ObservationRepository) Insert(ctx context.Context, rec model.ObservationRecord) error {
	return r.InsertBatch(ctx, []model.ObservationRecord{rec})
}

func (r *ObservationRepository) Get(ctx context.Context, id string) (model.ObservationRecord, error) {
	var row observationRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectObservation+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ObservationRecord{}, fmt.Errorf("observation %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.ObservationRecord{}, fmt.Errorf("failed to query observation: %w", err)
	}
	return row.record(), nil
}

// All returns every stored observation, oldest first.
func (r *ObservationRepository) All(ctx context.Context) ([]model.ObservationRecord, error) {
	var rows []observationRow
	if err := r.db.SelectContext(ctx, &rows, selectObservation+` ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}

	records := make([]model.ObservationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

