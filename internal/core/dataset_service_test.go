package core

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"exoplanet_service/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetUploadBecomesReady(t *testing.T) {
	env := newTestEnv(t)
	svc := env.datasetService(t, 100)
	ctx := context.Background()

	d, err := svc.Upload(ctx, "kepler_training_set.csv", model.PurposeFineTuning, strings.NewReader(datasetCSV(120)))
	require.NoError(t, err)
	assert.Equal(t, model.DatasetProcessing, d.Status)
	assert.Equal(t, "kepler_training_set.csv", d.Name)
	assert.NotEmpty(t, d.Size)
	assert.FileExists(t, d.FilePath)

	svc.Wait()
	d, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatasetReady, d.Status)
	assert.Equal(t, 120, d.Samples)
	assert.Empty(t, d.StatusReason)
}

func TestDatasetProcessingErrors(t *testing.T) {
	env := newTestEnv(t)
	svc := env.datasetService(t, 100)
	ctx := context.Background()

	small, err := svc.Upload(ctx, "small.csv", "", strings.NewReader(datasetCSV(20)))
	require.NoError(t, err)
	unlabelled, err := svc.Upload(ctx, "unlabelled.CSV", "", strings.NewReader(observationCSV(150)))
	require.NoError(t, err)
	svc.Wait()

	small, err = svc.Get(ctx, small.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatasetError, small.Status)
	assert.Equal(t, 20, small.Samples)
	assert.Contains(t, small.StatusReason, "at least 100")

	unlabelled, err = svc.Get(ctx, unlabelled.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatasetError, unlabelled.Status)
	assert.Contains(t, unlabelled.StatusReason, "label")
}

func TestDatasetUploadRejects(t *testing.T) {
	env := newTestEnv(t)
	svc := env.datasetService(t, 1)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "data.json", "", strings.NewReader("{}"))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Upload(ctx, "data.csv", "inference", strings.NewReader(datasetCSV(1)))
	assert.ErrorIs(t, err, model.ErrValidation)

	big := strings.Repeat("x", 2<<20)
	_, err = svc.Upload(ctx, "big.csv", "", strings.NewReader(big))
	assert.ErrorIs(t, err, model.ErrTooLarge)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDatasetListNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	svc := env.datasetService(t, 1)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, name := range []string{"a.csv", "b.csv", "c.csv"} {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		d, err := svc.Upload(ctx, name, "", strings.NewReader(datasetCSV(2)))
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	svc.Wait()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestDatasetDeleteIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	svc := env.datasetService(t, 1)
	ctx := context.Background()

	d := env.readyDataset(t, svc, 3)

	deleted, err := svc.Delete(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, statErr := os.Stat(d.FilePath)
	assert.True(t, os.IsNotExist(statErr))

	deleted, err = svc.Delete(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = svc.Delete(ctx, "never-existed")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDatasetDeleteWithActiveJob(t *testing.T) {
	env := newTestEnv(t)
	svc := env.datasetService(t, 1)
	ctx := context.Background()

	d := env.readyDataset(t, svc, 3)
	require.NoError(t, env.jobs.Create(ctx, model.TrainingJob{
		ID:        "job-1",
		ModelType: model.ModelXGBoost,
		DatasetID: d.ID,
		Status:    model.JobRunning,
		CreatedAt: time.Now(),
	}))

	_, err := svc.Delete(ctx, d.ID)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.FileExists(t, d.FilePath)
}

func TestDatasetUseReady(t *testing.T) {
	env := newTestEnv(t)
	svc := env.datasetService(t, 10)
	ctx := context.Background()

	pending, err := svc.Upload(ctx, "few.csv", "", strings.NewReader(datasetCSV(2)))
	require.NoError(t, err)
	svc.Wait()

	called := false
	err = svc.UseReady(ctx, pending.ID, func(model.Dataset) error { called = true; return nil })
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.False(t, called)

	err = svc.UseReady(ctx, "unknown", func(model.Dataset) error { return nil })
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDatasetRecover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.datasets.Create(ctx, model.Dataset{
		ID:         "ds-left",
		Name:       "left.csv",
		Purpose:    model.PurposeFineTuning,
		Status:     model.DatasetProcessing,
		FilePath:   "/nonexistent/left.csv",
		UploadDate: time.Now(),
	}))

	svc := env.datasetService(t, 1)
	ready := env.readyDataset(t, svc, 3)
	require.NoError(t, svc.Recover(ctx))

	d, err := svc.Get(ctx, "ds-left")
	require.NoError(t, err)
	assert.Equal(t, model.DatasetError, d.Status)
	assert.Equal(t, reasonInterrupted, d.StatusReason)

	d, err = svc.Get(ctx, ready.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatasetReady, d.Status)

	err = svc.UseReady(ctx, "ds-left", func(model.Dataset) error { return nil })
	assert.ErrorIs(t, err, model.ErrConflict)
	deleted, err := svc.Delete(ctx, "ds-left")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDatasetCloseRecordsStatus(t *testing.T) {
	env := newTestEnv(t)
	svc := env.datasetService(t, 1)
	ctx := context.Background()

	d, err := svc.Upload(ctx, "train.csv", "", strings.NewReader(datasetCSV(500)))
	require.NoError(t, err)
	svc.Close()

	d, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.NotEqual(t, model.DatasetProcessing, d.Status)
	if d.Status == model.DatasetError {
		assert.Equal(t, reasonShutdown, d.StatusReason)
	}
}
