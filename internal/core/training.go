package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"exoplanet_service/internal/domain/model"
	"exoplanet_service/internal/domain/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type TrainingConfig struct {
	Workers      int
	QueueSize    int
	PollInterval time.Duration
	Timeout      time.Duration
}

// FineTuneRequest asks for a model to be fine-tuned on an uploaded dataset.
type FineTuneRequest struct {
	ModelType       string                 `json:"modelType"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	DatasetID       string                 `json:"datasetId"`
}

const (
	reasonInterrupted = "interrupted: service restarted"
	reasonShutdown    = "interrupted: service shutting down"
	reasonQueueFull   = "training queue is full"
)

// TrainingRunner owns the fine-tuning job lifecycle: it queues jobs, drives
// them on the ML backend with a pool of workers and persists every transition.
type TrainingRunner struct {
	jobs     *repository.JobRepository
	datasets *DatasetService
	mlClient model.MLClient
	cfg      TrainingConfig
	queue    chan string
	now      func() time.Time

	// mu guards job state transitions and cancels.
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewTrainingRunner(
	jobs *repository.JobRepository,
	datasets *DatasetService,
	mlClient model.MLClient,
	cfg TrainingConfig,
) *TrainingRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &TrainingRunner{
		jobs:     jobs,
		datasets: datasets,
		mlClient: mlClient,
		cfg:      cfg,
		queue:    make(chan string, cfg.QueueSize),
		now:      time.Now,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Recover fails jobs a previous process left queued or running.
func (r *TrainingRunner) Recover(ctx context.Context) error {
	n, err := r.jobs.FailActive(ctx, reasonInterrupted, r.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		log.WithField("jobs", n).Warn("marked interrupted training jobs as failed")
	}
	return nil
}

// Start validates a request and queues a new job.
func (r *TrainingRunner) Start(ctx context.Context, req FineTuneRequest) (model.TrainingJob, error) {
	mt, err := model.ParseModelType(req.ModelType)
	if err != nil {
		return model.TrainingJob{}, model.Invalid("modelType", "%v", err)
	}
	params, err := ValidateHyperparameters(mt, req.Hyperparameters)
	if err != nil {
		return model.TrainingJob{}, err
	}
	if req.DatasetID == "" {
		return model.TrainingJob{}, model.Invalid("datasetId", "is required")
	}

	var job model.TrainingJob
	err = r.datasets.UseReady(ctx, req.DatasetID, func(d model.Dataset) error {
		active, err := r.jobs.ActiveForDataset(ctx, d.ID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return fmt.Errorf("dataset %s already has active job %s: %w", d.ID, active[0].ID, model.ErrConflict)
		}
		// Producers are serialised by UseReady, so a free slot seen here
		// is still free when the job is sent.
		if len(r.queue) >= cap(r.queue) {
			return fmt.Errorf("%s: %w", reasonQueueFull, model.ErrUnavailable)
		}

		job = model.TrainingJob{
			ID:              uuid.NewString(),
			ModelType:       mt,
			DatasetID:       d.ID,
			Hyperparameters: params,
			Status:          model.JobQueued,
			Metrics:         map[string]float64{},
			CreatedAt:       r.now().UTC(),
		}
		if err := r.jobs.Create(ctx, job); err != nil {
			return err
		}

		select {
		case r.queue <- job.ID:
		default:
			r.finish(job.ID, model.JobFailed, reasonQueueFull, nil)
			return fmt.Errorf("%s: %w", reasonQueueFull, model.ErrUnavailable)
		}
		return nil
	})
	if err != nil {
		return model.TrainingJob{}, err
	}

	log.WithFields(log.Fields{"job_id": job.ID, "model_type": mt, "dataset_id": job.DatasetID}).Info("training job queued")
	return job, nil
}

func (r *TrainingRunner) Status(ctx context.Context, id string) (model.TrainingJob, error) {
	return r.jobs.Get(ctx, id)
}

// List returns all jobs, newest first.
func (r *TrainingRunner) List(ctx context.Context) ([]model.TrainingJob, error) {
	return r.jobs.List(ctx)
}

// Cancel stops a queued or running job. Cancelling a cancelled job is a no-op.
func (r *TrainingRunner) Cancel(ctx context.Context, id string) (model.TrainingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.jobs.Get(ctx, id)
	if err != nil {
		return model.TrainingJob{}, err
	}
	switch job.Status {
	case model.JobCancelled:
		return job, nil
	case model.JobSucceeded, model.JobFailed:
		return job, fmt.Errorf("job %s already %s: %w", id, job.Status, model.ErrConflict)
	}

	now := r.now().UTC()
	job.Status = model.JobCancelled
	job.FinishedAt = &now
	if err := r.jobs.Update(ctx, job); err != nil {
		return model.TrainingJob{}, err
	}
	if cancel, ok := r.cancels[id]; ok {
		cancel()
	}

	log.WithField("job_id", id).Info("training job cancelled")
	return job, nil
}

// Run processes queued jobs until ctx is done. Jobs still in flight or
// waiting in the queue at shutdown are marked failed.
func (r *TrainingRunner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx)
		}()
	}
	wg.Wait()

	for {
		select {
		case id := <-r.queue:
			r.finish(id, model.JobFailed, reasonShutdown, nil)
		default:
			return nil
		}
	}
}

func (r *TrainingRunner) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			r.execute(ctx, id)
		}
	}
}

func (r *TrainingRunner) execute(ctx context.Context, id string) {
	logger := log.WithField("job_id", id)

	jobCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	job, ok := r.begin(id, cancel)
	if !ok {
		return
	}
	defer r.release(id)
	logger.Info("training job started")

	spec := model.TrainingSpec{
		JobID:           job.ID,
		ModelType:       job.ModelType,
		Hyperparameters: job.Hyperparameters,
		DatasetID:       job.DatasetID,
	}
	if d, err := r.datasets.Get(jobCtx, job.DatasetID); err == nil {
		spec.DatasetPath = d.FilePath
	}

	runID, err := r.mlClient.StartTraining(jobCtx, spec)
	if err != nil {
		r.interrupted(ctx, jobCtx, id, "", fmt.Sprintf("failed to start training: %v", err))
		return
	}
	r.update(id, func(j *model.TrainingJob) { j.RunID = runID })

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-jobCtx.Done():
			r.interrupted(ctx, jobCtx, id, runID, "")
			return
		case <-ticker.C:
		}

		p, err := r.mlClient.TrainingStatus(jobCtx, runID)
		if err != nil {
			if jobCtx.Err() != nil {
				continue
			}
			r.finish(id, model.JobFailed, fmt.Sprintf("failed to poll training: %v", err), nil)
			logger.WithError(err).Warn("training job failed")
			return
		}

		switch p.Status {
		case model.JobSucceeded:
			r.finish(id, model.JobSucceeded, "", p.Metrics)
			logger.Info("training job succeeded")
			return
		case model.JobFailed:
			reason := p.Error
			if reason == "" {
				reason = "training failed"
			}
			r.finish(id, model.JobFailed, reason, nil)
			logger.WithField("reason", reason).Warn("training job failed")
			return
		case model.JobCancelled:
			r.finish(id, model.JobCancelled, "", nil)
			logger.Info("training job cancelled by ML service")
			return
		default:
			r.update(id, func(j *model.TrainingJob) {
				j.Progress = advance(j.Progress, p.Progress)
				for k, v := range p.Metrics {
					j.Metrics[k] = v
				}
			})
		}
	}
}

// interrupted handles a job whose context ended or whose start failed.
func (r *TrainingRunner) interrupted(ctx, jobCtx context.Context, id, runID, reason string) {
	if runID != "" {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.mlClient.CancelTraining(stopCtx, runID); err != nil {
			log.WithError(err).WithField("job_id", id).Warn("failed to cancel training run")
		}
		stop()
	}

	switch {
	case ctx.Err() != nil:
		reason = reasonShutdown
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		reason = fmt.Sprintf("training timed out after %s", r.cfg.Timeout)
	case jobCtx.Err() != nil:
		// Cancelled through Cancel, which already stored the outcome.
		return
	}
	r.finish(id, model.JobFailed, reason, nil)
	log.WithFields(log.Fields{"job_id": id, "reason": reason}).Warn("training job failed")
}

// begin moves a queued job to running and registers its cancel func.
func (r *TrainingRunner) begin(id string, cancel context.CancelFunc) (model.TrainingJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.jobs.Get(context.Background(), id)
	if err != nil {
		log.WithError(err).WithField("job_id", id).Error("failed to load training job")
		return model.TrainingJob{}, false
	}
	if job.Status != model.JobQueued {
		return model.TrainingJob{}, false
	}

	now := r.now().UTC()
	job.Status = model.JobRunning
	job.StartedAt = &now
	if err := r.jobs.Update(context.Background(), job); err != nil {
		log.WithError(err).WithField("job_id", id).Error("failed to start training job")
		return model.TrainingJob{}, false
	}
	r.cancels[id] = cancel
	return job, true
}

func (r *TrainingRunner) release(id string) {
	r.mu.Lock()
	delete(r.cancels, id)
	r.mu.Unlock()
}

// update applies fn to an active job. Terminal jobs are left untouched.
func (r *TrainingRunner) update(id string, fn func(*model.TrainingJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	job, err := r.jobs.Get(ctx, id)
	if err != nil {
		log.WithError(err).WithField("job_id", id).Error("failed to load training job")
		return
	}
	if job.Status.Terminal() {
		return
	}
	if job.Metrics == nil {
		job.Metrics = map[string]float64{}
	}
	fn(&job)
	if err := r.jobs.Update(ctx, job); err != nil {
		log.WithError(err).WithField("job_id", id).Error("failed to store training job")
	}
}

func (r *TrainingRunner) finish(id string, status model.JobStatus, reason string, metrics map[string]float64) {
	r.update(id, func(j *model.TrainingJob) {
		now := r.now().UTC()
		j.Status = status
		j.Error = reason
		j.FinishedAt = &now
		for k, v := range metrics {
			j.Metrics[k] = v
		}
		if status == model.JobSucceeded {
			j.Progress = 100
			j.ModelID = FineTunedModelID(j.ModelType, j.ID)
		}
	})
}

// advance keeps progress monotonic and within 0..100.
func advance(current, reported int) int {
	if reported > 100 {
		reported = 100
	}
	if reported < current {
		return current
	}
	return reported
}

// FineTunedModelID names the model a succeeded job produces.
func FineTunedModelID(mt model.ModelType, jobID string) string {
	return fmt.Sprintf("%s-ft-%s", mt, jobID)
}
