package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 100, cfg.MinDatasetSamples)
	assert.Equal(t, 500*time.Millisecond, cfg.TrainingPollInterval)
	assert.Equal(t, 30*time.Minute, cfg.TrainingTimeout)
	assert.True(t, cfg.ChartURLs)
	assert.False(t, cfg.RecordPredictions)
	assert.Empty(t, cfg.MLServiceURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("TRAINING_WORKERS", "4")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("RECORD_PREDICTIONS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 4, cfg.TrainingWorkers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.RecordPredictions)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MIN_DATASET_SAMPLES=250\nCACHE_SIZE=64\n"), 0o600))
	t.Setenv("MIN_DATASET_SAMPLES", "")
	os.Unsetenv("MIN_DATASET_SAMPLES")
	t.Setenv("CACHE_SIZE", "32")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.MinDatasetSamples)
	assert.Equal(t, 32, cfg.CacheSize, "environment wins over the file")

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"DB_DRIVER":        "mysql",
		"TRAINING_WORKERS": "0",
		"LOG_LEVEL":        "chatty",
		"PORT":             "not-a-port",
		"TRAINING_TIMEOUT": "forever",
		"ALLOWED_ORIGINS":  "localhost:5173",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestInitLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	require.NoError(t, InitLogging("debug"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.Error(t, InitLogging("loud"))
}
