package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exoplanet_service/internal/domain/model"

	"github.com/jmoiron/sqlx"
)

type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

type jobRow struct {
	ID              string `db:"id"`
	ModelType       string `db:"model_type"`
	DatasetID       string `db:"dataset_id"`
	Hyperparameters string `db:"hyperparameters"`
	Status          string `db:"status"`
	Progress        int    `db:"progress"`
	Metrics         string `db:"metrics"`
	Error           string `db:"error"`
	ModelID         string `db:"model_id"`
	RunID           string `db:"run_id"`
	CreatedAt       int64  `db:"created_at"`
	StartedAt       *int64 `db:"started_at"`
	FinishedAt      *int64 `db:"finished_at"`
}

func newJobRow(job model.TrainingJob) (jobRow, error) {
	hyper, err := json.Marshal(job.Hyperparameters)
	if err != nil {
		return jobRow{}, fmt.Errorf("failed to marshal hyperparameters: %w", err)
	}
	metrics := job.Metrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return jobRow{}, fmt.Errorf("failed to marshal metrics: %w", err)
	}

	return jobRow{
		ID:              job.ID,
		ModelType:       string(job.ModelType),
		DatasetID:       job.DatasetID,
		Hyperparameters: string(hyper),
		Status:          string(job.Status),
		Progress:        job.Progress,
		Metrics:         string(metricsJSON),
		Error:           job.Error,
		ModelID:         job.ModelID,
		RunID:           job.RunID,
		CreatedAt:       toMillis(job.CreatedAt),
		StartedAt:       toMillisPtr(job.StartedAt),
		FinishedAt:      toMillisPtr(job.FinishedAt),
	}, nil
}

func (r jobRow) job() (model.TrainingJob, error) {
	job := model.TrainingJob{
		ID:         r.ID,
		ModelType:  model.ModelType(r.ModelType),
		DatasetID:  r.DatasetID,
		Status:     model.JobStatus(r.Status),
		Progress:   r.Progress,
		Error:      r.Error,
		ModelID:    r.ModelID,
		RunID:      r.RunID,
		CreatedAt:  fromMillis(r.CreatedAt),
		StartedAt:  fromMillisPtr(r.StartedAt),
		FinishedAt: fromMillisPtr(r.FinishedAt),
	}
	if err := json.Unmarshal([]byte(r.Hyperparameters), &job.Hyperparameters); err != nil {
		return model.TrainingJob{}, fmt.Errorf("failed to decode hyperparameters of job %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Metrics), &job.Metrics); err != nil {
		return model.TrainingJob{}, fmt.Errorf("failed to decode metrics of job %s: %w", r.ID, err)
	}
	if job.Metrics == nil {
		job.Metrics = map[string]float64{}
	}
	return job, nil
}

const selectJob = `
	SELECT
		id, model_type, dataset_id, hyperparameters, status, progress, metrics,
		error, model_id, run_id, created_at, started_at, finished_at
	FROM training_jobs`

func (r *JobRepository) Create(ctx context.Context, job model.TrainingJob) error {
	const query = `
		INSERT INTO training_jobs (
			id, model_type, dataset_id, hyperparameters, status, progress, metrics,
			error, model_id, run_id, created_at, started_at, finished_at
		) VALUES (
			:id, :model_type, :dataset_id, :hyperparameters, :status, :progress, :metrics,
			:error, :model_id, :run_id, :created_at, :started_at, :finished_at
		)`

	row, err := newJobRow(job)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert training job: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of a job.
func (r *JobRepository) Update(ctx context.Context, job model.TrainingJob) error {
	const query = `
		UPDATE training_jobs SET
			status = :status,
			progress = :progress,
			metrics = :metrics,
			error = :error,
			model_id = :model_id,
			run_id = :run_id,
			started_at = :started_at,
			finished_at = :finished_at
		WHERE id = :id`

	row, err := newJobRow(job)
	if err != nil {
		return err
	}
	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update training job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update training job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("training job %s: %w", job.ID, model.ErrNotFound)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (model.TrainingJob, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectJob+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrainingJob{}, fmt.Errorf("training job %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.TrainingJob{}, fmt.Errorf("failed to query training job: %w", err)
	}
	return row.job()
}

// List returns all jobs, newest first.
func (r *JobRepository) List(ctx context.Context) ([]model.TrainingJob, error) {
	return r.selectJobs(ctx, selectJob+` ORDER BY created_at DESC, id`)
}

// ActiveForDataset returns queued or running jobs that use the dataset.
func (r *JobRepository) ActiveForDataset(ctx context.Context, datasetID string) ([]model.TrainingJob, error) {
	query := selectJob + ` WHERE dataset_id = ? AND status IN (?, ?) ORDER BY created_at`
	return r.selectJobs(ctx, r.db.Rebind(query), datasetID, string(model.JobQueued), string(model.JobRunning))
}

// FindByModelID returns the succeeded job that produced a fine-tuned model.
func (r *JobRepository) FindByModelID(ctx context.Context, modelID string) (model.TrainingJob, error) {
	var row jobRow
	query := r.db.Rebind(selectJob + ` WHERE model_id = ? AND status = ?`)
	err := r.db.GetContext(ctx, &row, query, modelID, string(model.JobSucceeded))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrainingJob{}, fmt.Errorf("model %s: %w", modelID, model.ErrNotFound)
	}
	if err != nil {
		return model.TrainingJob{}, fmt.Errorf("failed to query model: %w", err)
	}
	return row.job()
}

// FailActive marks every queued or running job as failed. It is used on
// startup to close jobs a previous process left behind.
func (r *JobRepository) FailActive(ctx context.Context, reason string, now time.Time) (int64, error) {
	const query = `UPDATE training_jobs SET status = ?, error = ?, finished_at = ? WHERE status IN (?, ?)`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		string(model.JobFailed), reason, toMillis(now),
		string(model.JobQueued), string(model.JobRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

func (r *JobRepository) selectJobs(ctx context.Context, query string, args ...interface{}) ([]model.TrainingJob, error) {
	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query training jobs: %w", err)
	}

	jobs := make([]model.TrainingJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.job()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
