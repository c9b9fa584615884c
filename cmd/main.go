package main

import (
	"context"
	"fmt"
	"os"

	"exoplanet_service/internal/config"
	"exoplanet_service/internal/domain/repository"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "exoplanet",
	Short:         "Backend gateway for exoplanet candidate classification",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the fine-tuning job runner",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file read before the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("exoplanet exited")
		os.Exit(1)
	}
}

// loadConfig читает конфигурацию и настраивает логирование.
func loadConfig() (*config.Configuration, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := config.InitLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := repository.Open(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(context.Background(), db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.WithField("driver", cfg.DBDriver).Info("schema is up to date")
	return nil
}
