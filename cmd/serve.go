package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exoplanet_service/internal/api"
	"exoplanet_service/internal/catalog"
	"exoplanet_service/internal/config"
	"exoplanet_service/internal/core"
	"exoplanet_service/internal/domain/model"
	"exoplanet_service/internal/domain/repository"
	"exoplanet_service/internal/infrastructure/charts"
	"exoplanet_service/internal/infrastructure/filestore"
	"exoplanet_service/internal/infrastructure/mlclient"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newMLClient(cfg *config.Configuration, cat *catalog.Catalog) model.MLClient {
	if cfg.MLServiceURL == "" {
		log.Warn("ML_SERVICE_URL is not set, using the static ML backend")
		return mlclient.NewStaticMLClient(cat, 10)
	}
	return mlclient.NewHTTPMLClient(cfg.MLServiceURL, cfg.MLServiceTimeout)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Инициализация хранилища
	db, err := repository.Open(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	files, err := filestore.NewDiskStore(cfg.DatasetDir)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.ModelCatalog)
	if err != nil {
		return err
	}
	mlClient := newMLClient(cfg, cat)

	observations := repository.NewObservationRepository(db)
	jobs := repository.NewJobRepository(db)

	// Сервисы
	datasets := core.NewDatasetService(repository.NewDatasetRepository(db), jobs, files, core.DatasetOptions{
		MaxBytes:   cfg.MaxUploadBytes,
		MinSamples: cfg.MinDatasetSamples,
	})
	defer datasets.Close()
	if err := datasets.Recover(ctx); err != nil {
		return err
	}

	runner := core.NewTrainingRunner(jobs, datasets, mlClient, core.TrainingConfig{
		Workers:      cfg.TrainingWorkers,
		QueueSize:    cfg.TrainingQueueSize,
		PollInterval: cfg.TrainingPollInterval,
		Timeout:      cfg.TrainingTimeout,
	})
	if err := runner.Recover(ctx); err != nil {
		return err
	}

	visualizations, err := core.NewVisualizationService(observations, mlClient, charts.NewRenderer(cfg.ChartURLs), cfg.CacheSize)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Services{
		Observations:   core.NewObservationService(observations),
		Datasets:       datasets,
		Predictions:    core.NewPredictionService(observations, mlClient, repository.NewSQLPredictionRecorder(db), cfg.RecordPredictions),
		Training:       runner,
		Models:         core.NewModelService(cat, jobs),
		Visualizations: visualizations,
		Ping:           db.PingContext,
	})

	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(handler, api.RouterOptions{
			AllowedOrigins: cfg.AllowedOrigins,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		log.WithFields(log.Fields{"addr": server.Addr, "ml_service": cfg.MLServiceURL}).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
