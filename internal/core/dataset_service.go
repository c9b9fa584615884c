package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"exoplanet_service/internal/domain/model"
	"exoplanet_service/internal/domain/repository"
	"exoplanet_service/internal/infrastructure/filestore"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const statusWriteTimeout = 5 * time.Second

type DatasetOptions struct {
	MaxBytes   int64
	MinSamples int
}

// DatasetService stores training files and validates them in the background.
type DatasetService struct {
	repo  *repository.DatasetRepository
	jobs  *repository.JobRepository
	files *filestore.DiskStore
	opts  DatasetOptions
	now   func() time.Time

	// mu serialises deletes against job submission so a dataset cannot
	// disappear under a job that is being queued.
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDatasetService(
	repo *repository.DatasetRepository,
	jobs *repository.JobRepository,
	files *filestore.DiskStore,
	opts DatasetOptions,
) *DatasetService {
	ctx, cancel := context.WithCancel(context.Background())
	return &DatasetService{
		repo:   repo,
		jobs:   jobs,
		files:  files,
		opts:   opts,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Upload saves the file and returns the dataset in the processing state.
// Validation of the content happens asynchronously.
func (s *DatasetService) Upload(ctx context.Context, name, purpose string, r io.Reader) (model.Dataset, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || !strings.EqualFold(filepath.Ext(name), ".csv") {
		return model.Dataset{}, model.Invalid("file", "dataset must be a .csv file")
	}
	if purpose == "" {
		purpose = model.PurposeFineTuning
	}
	if purpose != model.PurposeFineTuning {
		return model.Dataset{}, model.Invalid("purpose", "unsupported purpose %q", purpose)
	}

	id := uuid.NewString()
	path, n, err := s.files.Save(id, r, s.opts.MaxBytes)
	if errors.Is(err, filestore.ErrTooLarge) {
		return model.Dataset{}, fmt.Errorf("dataset exceeds %d bytes: %w", s.opts.MaxBytes, model.ErrTooLarge)
	}
	if err != nil {
		return model.Dataset{}, err
	}

	d := model.Dataset{
		ID:         id,
		Name:       name,
		Purpose:    purpose,
		SizeBytes:  n,
		UploadDate: s.now().UTC(),
		Status:     model.DatasetProcessing,
		FilePath:   path,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		s.files.Remove(path)
		return model.Dataset{}, fmt.Errorf("failed to register dataset: %w", err)
	}
	d, err = s.repo.Get(ctx, id)
	if err != nil {
		return model.Dataset{}, err
	}

	log.WithFields(log.Fields{"dataset_id": id, "name": name, "bytes": n}).Info("dataset uploaded")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(d)
	}()
	return d, nil
}

func (s *DatasetService) process(d model.Dataset) {
	logger := log.WithField("dataset_id", d.ID)

	status, samples, reason := model.DatasetReady, 0, ""
	sum, err := s.scan(d.FilePath)
	switch {
	case err != nil && s.ctx.Err() != nil:
		status, reason = model.DatasetError, reasonShutdown
	case err != nil:
		status, reason = model.DatasetError, err.Error()
	case sum.Samples < s.opts.MinSamples:
		status, samples = model.DatasetError, sum.Samples
		reason = fmt.Sprintf("dataset has %d samples, at least %d are required", sum.Samples, s.opts.MinSamples)
	default:
		samples = sum.Samples
	}

	// Статус пишем и после Close.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), statusWriteTimeout)
	defer cancel()
	err = s.repo.UpdateStatus(ctx, d.ID, status, samples, reason)
	if errors.Is(err, model.ErrNotFound) {
		logger.Debug("dataset deleted during processing")
		return
	}
	if err != nil {
		logger.WithError(err).Error("failed to store dataset status")
		return
	}
	logger.WithFields(log.Fields{"status": status, "samples": samples, "reason": reason}).Info("dataset processed")
}

func (s *DatasetService) scan(path string) (*DatasetSummary, error) {
	f, err := s.files.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ScanDataset(ctxReader{ctx: s.ctx, r: f})
}

// ctxReader stops a scan once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Recover fails datasets a previous process left in processing.
func (s *DatasetService) Recover(ctx context.Context) error {
	n, err := s.repo.FailProcessing(ctx, reasonInterrupted)
	if err != nil {
		return err
	}
	if n > 0 {
		log.WithField("datasets", n).Warn("marked interrupted datasets as failed")
	}
	return nil
}

func (s *DatasetService) Get(ctx context.Context, id string) (model.Dataset, error) {
	return s.repo.Get(ctx, id)
}

// List returns datasets newest first.
func (s *DatasetService) List(ctx context.Context) ([]model.Dataset, error) {
	return s.repo.List(ctx)
}

// Delete removes a dataset and its file. Unknown ids report false.
func (s *DatasetService) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.repo.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	active, err := s.jobs.ActiveForDataset(ctx, id)
	if err != nil {
		return false, err
	}
	if len(active) > 0 {
		return false, fmt.Errorf("dataset %s is used by training job %s: %w", id, active[0].ID, model.ErrConflict)
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if err := s.files.Remove(d.FilePath); err != nil {
		log.WithError(err).WithField("dataset_id", id).Warn("failed to remove dataset file")
	}
	if deleted {
		log.WithField("dataset_id", id).Info("dataset deleted")
	}
	return deleted, nil
}

// UseReady runs fn with a dataset that finished processing successfully.
// Deletes are held off until fn returns.
func (s *DatasetService) UseReady(ctx context.Context, id string, fn func(model.Dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != model.DatasetReady {
		return fmt.Errorf("dataset %s is %s: %w", id, d.Status, model.ErrConflict)
	}
	return fn(d)
}

// Wait blocks until all started processing has finished.
func (s *DatasetService) Wait() {
	s.wg.Wait()
}

// Close stops background processing and waits for it.
func (s *DatasetService) Close() {
	s.cancel()
	s.wg.Wait()
}
