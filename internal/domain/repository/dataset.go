package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"exoplanet_service/internal/domain/model"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
)

type DatasetRepository struct {
	db *sqlx.DB
}

func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

type datasetRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Purpose      string `db:"purpose"`
	SizeBytes    int64  `db:"size_bytes"`
	Samples      int    `db:"samples"`
	Status       string `db:"status"`
	StatusReason string `db:"status_reason"`
	FilePath     string `db:"file_path"`
	UploadedAt   int64  `db:"uploaded_at"`
}

func (r datasetRow) dataset() model.Dataset {
	return model.Dataset{
		ID:           r.ID,
		Name:         r.Name,
		Purpose:      r.Purpose,
		SizeBytes:    r.SizeBytes,
		Size:         humanize.Bytes(uint64(r.SizeBytes)),
		UploadDate:   fromMillis(r.UploadedAt),
		Samples:      r.Samples,
		Status:       model.DatasetStatus(r.Status),
		StatusReason: r.StatusReason,
		FilePath:     r.FilePath,
	}
}

const selectDataset = `
	SELECT id, name, purpose, size_bytes, samples, status, status_reason, file_path, uploaded_at
	FROM datasets`

func (r *DatasetRepository) Create(ctx context.Context, d model.Dataset) error {
	const query = `
		INSERT INTO datasets (
			id, name, purpose, size_bytes, samples, status, status_reason, file_path, uploaded_at
		) VALUES (
			:id, :name, :purpose, :size_bytes, :samples, :status, :status_reason, :file_path, :uploaded_at
		)`

	row := datasetRow{
		ID:           d.ID,
		Name:         d.Name,
		Purpose:      d.Purpose,
		SizeBytes:    d.SizeBytes,
		Samples:      d.Samples,
		Status:       string(d.Status),
		StatusReason: d.StatusReason,
		FilePath:     d.FilePath,
		UploadedAt:   toMillis(d.UploadDate),
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}
	return nil
}

func (r *DatasetRepository) Get(ctx context.Context, id string) (model.Dataset, error) {
	var row datasetRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectDataset+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dataset{}, fmt.Errorf("dataset %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Dataset{}, fmt.Errorf("failed to query dataset: %w", err)
	}
	return row.dataset(), nil
}

// List returns datasets, most recently uploaded first.
func (r *DatasetRepository) List(ctx context.Context) ([]model.Dataset, error) {
	var rows []datasetRow
	if err := r.db.SelectContext(ctx, &rows, selectDataset+` ORDER BY uploaded_at DESC, id`); err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}

	datasets := make([]model.Dataset, 0, len(rows))
	for _, row := range rows {
		datasets = append(datasets, row.dataset())
	}
	return datasets, nil
}

// UpdateStatus records the outcome of dataset processing.
func (r *DatasetRepository) UpdateStatus(ctx context.Context, id string, status model.DatasetStatus, samples int, reason string) error {
	const query = `UPDATE datasets SET status = ?, samples = ?, status_reason = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), string(status), samples, reason, id)
	if err != nil {
		return fmt.Errorf("failed to update dataset status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update dataset status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("dataset %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// FailProcessing marks every dataset still in processing as failed and
// returns how many rows it changed.
func (r *DatasetRepository) FailProcessing(ctx context.Context, reason string) (int64, error) {
	const query = `UPDATE datasets SET status = ?, status_reason = ? WHERE status = ?`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		string(model.DatasetError), reason, string(model.DatasetProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close interrupted datasets: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a dataset and reports whether a row existed.
func (r *DatasetRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM datasets WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete dataset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete dataset: %w", err)
	}
	return n > 0, nil
}
