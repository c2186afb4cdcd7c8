package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/api"
	"github.com/Project-DevX/healthmate-sub000/internal/archive"
	"github.com/Project-DevX/healthmate-sub000/internal/cache"
	"github.com/Project-DevX/healthmate-sub000/internal/database"
	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/engine"
	"github.com/Project-DevX/healthmate-sub000/internal/service"
	"github.com/Project-DevX/healthmate-sub000/pkg/external"
)

// application holds the wired dependencies of the server
type application struct {
	logger        *logrus.Logger
	service       *service.AssessmentService
	serverOptions []api.Option
	closers       []func() error
}

func newApplication(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*application, error) {
	app := &application{logger: logger}
	ready := false
	defer func() {
		if !ready {
			app.Close()
		}
	}()

	records, err := app.recordSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	table := engine.NewThresholdTable()
	if cfg.Engine.ThresholdsFile != "" {
		if err := table.LoadThresholdOverrides(cfg.Engine.ThresholdsFile); err != nil {
			return nil, err
		}
	}
	featureEngine := engine.NewFeatureEngine(logger, table, engine.Options{
		CorrelationWindow:   cfg.Engine.CorrelationWindow,
		MaxProjectionMonths: cfg.Engine.MaxProjectionMonths,
		Workers:             cfg.Engine.Workers,
	})

	panel := service.NewSpecialistPanel(logger, consultant(logger, cfg.Narrative), cfg.Narrative.ConsultTimeout, cfg.Narrative.RetryCount)

	var opts []service.Option
	snapshots, err := app.openArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if snapshots != nil {
		opts = append(opts, service.WithArchive(snapshots))
	}

	if cfg.Events.Enabled {
		publisher, err := external.NewKafkaEventPublisher(logger, cfg.Events)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, publisher.Close)
		opts = append(opts, service.WithEventPublisher(publisher))
	}

	store := cache.NewAssessmentCache(logger, cfg.Assessments)
	app.service = service.NewAssessmentService(logger, records, featureEngine, panel, store, opts...)
	ready = true
	return app, nil
}

// recordSource connects the document store and layers the breaker and,
// when Redis is configured, the observation cache on top
func (app *application) recordSource(ctx context.Context, cfg *domain.Config) (domain.RecordSource, error) {
	mongoSource, err := external.NewMongoRecordSource(ctx, app.logger, cfg.DocumentStore)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return mongoSource.Close(ctx)
	})
	app.serverOptions = append(app.serverOptions, api.WithHealthCheck("document_store", mongoSource.Ping))

	var records domain.RecordSource = external.NewResilientRecordSource(app.logger, mongoSource, cfg.DocumentStore)

	if cfg.Cache.RedisURL == "" {
		return records, nil
	}
	cacheClient, err := external.NewCacheClient(cfg.Cache)
	if err != nil {
		app.logger.WithError(err).Warn("Observation cache unavailable, reading through")
		return records, nil
	}
	app.closers = append(app.closers, cacheClient.Close)
	app.serverOptions = append(app.serverOptions, api.WithHealthCheck("cache", cacheClient.Ping))

	return external.NewCachedRecordSource(app.logger, records, cacheClient, cfg.Cache.DefaultTTL), nil
}

// openArchive opens the snapshot archive. PostgreSQL is migrated first and
// served through the pgx pool.
func (app *application) openArchive(ctx context.Context, cfg *domain.Config) (domain.SnapshotArchive, error) {
	if cfg.Archive.Driver != archive.DriverPostgres {
		store, err := archive.Open(cfg.Archive, "")
		if err != nil || store == nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		return store, nil
	}

	dbConfig := database.ConfigFromDomain(cfg.Database)

	runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.Database.MigrationsPath, app.logger)
	if err != nil {
		return nil, err
	}
	migrateErr := runner.Up(ctx)
	if err := runner.Close(); err != nil {
		app.logger.WithError(err).Warn("Failed to close migration runner")
	}
	if migrateErr != nil {
		return nil, migrateErr
	}

	db, err := database.NewConnection(ctx, dbConfig, app.logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() error {
		db.Close()
		return nil
	})
	app.serverOptions = append(app.serverOptions, api.WithHealthCheck("database", db.Health))

	store, err := archive.NewPostgresStore(db.SQL())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres archive: %w", err)
	}
	app.closers = append(app.closers, store.Close)
	return store, nil
}

func consultant(logger *logrus.Logger, cfg domain.NarrativeConfig) domain.NarrativeConsultant {
	if cfg.Provider == "openai" {
		return service.NewGenerativeConsultant(logger, external.NewNarrativeClient(logger, cfg))
	}
	return external.NewStubConsultant()
}

// Close releases dependencies in reverse order of acquisition
func (app *application) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.WithError(err).Warn("Failed to release dependency")
		}
	}
	app.closers = nil
}
