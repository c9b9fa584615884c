// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"exoplanet_service/internal/domain/repository"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

type Configuration struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBURL    string `envconfig:"DATABASE_URL" default:"exoplanet.db"`

	// Empty MLServiceURL selects the built-in static backend.
	MLServiceURL     string        `envconfig:"ML_SERVICE_URL"`
	MLServiceTimeout time.Duration `envconfig:"ML_SERVICE_TIMEOUT" default:"10s"`
	ModelCatalog     string        `envconfig:"MODEL_CATALOG"`

	DatasetDir        string `envconfig:"DATASET_DIR" default:"datasets"`
	MaxUploadBytes    int64  `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
	MinDatasetSamples int    `envconfig:"MIN_DATASET_SAMPLES" default:"100"`

	TrainingWorkers      int           `envconfig:"TRAINING_WORKERS" default:"2"`
	TrainingQueueSize    int           `envconfig:"TRAINING_QUEUE_SIZE" default:"32"`
	TrainingPollInterval time.Duration `envconfig:"TRAINING_POLL_INTERVAL" default:"500ms"`
	TrainingTimeout      time.Duration `envconfig:"TRAINING_TIMEOUT" default:"30m"`

	RecordPredictions bool     `envconfig:"RECORD_PREDICTIONS" default:"false"`
	AllowedOrigins    []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	ChartURLs         bool     `envconfig:"CHART_URLS" default:"true"`
	CacheSize         int      `envconfig:"CACHE_SIZE" default:"256"`
	LogLevel          string   `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Configuration, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	var cfg Configuration
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Configuration) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	case c.DBDriver != repository.DriverSQLite && c.DBDriver != repository.DriverPostgres:
		return fmt.Errorf("DB_DRIVER must be %s or %s, got %q", repository.DriverSQLite, repository.DriverPostgres, c.DBDriver)
	case c.DBURL == "":
		return errors.New("DATABASE_URL is required")
	case c.MaxUploadBytes <= 0:
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	case c.MinDatasetSamples < 1:
		return errors.New("MIN_DATASET_SAMPLES must be at least 1")
	case c.TrainingWorkers < 1:
		return errors.New("TRAINING_WORKERS must be at least 1")
	case c.TrainingQueueSize < 1:
		return errors.New("TRAINING_QUEUE_SIZE must be at least 1")
	case c.TrainingPollInterval <= 0 || c.TrainingTimeout <= 0 || c.MLServiceTimeout <= 0:
		return errors.New("durations must be positive")
	case c.CacheSize < 1:
		return errors.New("CACHE_SIZE must be at least 1")
	}
	for _, o := range c.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("ALLOWED_ORIGINS: %q must start with http:// or https://", o)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// InitLogging switches logrus to JSON output at the configured level.
func InitLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(lvl)
	return nil
}
