package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the configured database.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// single writer; an in-memory database only exists inside one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(100)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		id               TEXT PRIMARY KEY,
		batch_id         TEXT NOT NULL DEFAULT '',
		source           TEXT NOT NULL,
		koi_period       DOUBLE PRECISION NOT NULL,
		koi_duration     DOUBLE PRECISION NOT NULL,
		koi_depth        DOUBLE PRECISION NOT NULL,
		koi_prad         DOUBLE PRECISION NOT NULL,
		koi_model_snr    DOUBLE PRECISION NOT NULL,
		koi_num_transits DOUBLE PRECISION,
		koi_srad         DOUBLE PRECISION,
		koi_steff        DOUBLE PRECISION,
		koi_slogg        DOUBLE PRECISION,
		koi_impact       DOUBLE PRECISION,
		created_at       BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS observations_batch_idx ON observations (batch_id)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		size_bytes    BIGINT NOT NULL,
		samples       INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL,
		status_reason TEXT NOT NULL DEFAULT '',
		file_path     TEXT NOT NULL,
		uploaded_at   BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS training_jobs (
		id              TEXT PRIMARY KEY,
		model_type      TEXT NOT NULL,
		dataset_id      TEXT NOT NULL,
		hyperparameters TEXT NOT NULL,
		status          TEXT NOT NULL,
		progress        INTEGER NOT NULL DEFAULT 0,
		metrics         TEXT NOT NULL DEFAULT '{}',
		error           TEXT NOT NULL DEFAULT '',
		model_id        TEXT NOT NULL DEFAULT '',
		run_id          TEXT NOT NULL DEFAULT '',
		created_at      BIGINT NOT NULL,
		started_at      BIGINT,
		finished_at     BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS training_jobs_dataset_idx ON training_jobs (dataset_id, status)`,
	`CREATE INDEX IF NOT EXISTS training_jobs_model_idx ON training_jobs (model_id)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		id             TEXT PRIMARY KEY,
		model_type     TEXT NOT NULL,
		label          TEXT NOT NULL,
		probability    DOUBLE PRECISION NOT NULL,
		confidence     TEXT NOT NULL,
		observation_id TEXT NOT NULL DEFAULT '',
		features       TEXT NOT NULL,
		recorded_at    BIGINT NOT NULL
	)`,
}

// Migrate creates the tables the gateway needs. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Timestamps are stored as unix milliseconds so both drivers agree on the format.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func toMillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := fromMillis(*ms)
	return &t
}
