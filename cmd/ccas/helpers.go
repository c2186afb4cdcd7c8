package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/archive"
	"github.com/Project-DevX/healthmate-sub000/internal/cache"
	"github.com/Project-DevX/healthmate-sub000/internal/config"
	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/engine"
	"github.com/Project-DevX/healthmate-sub000/internal/service"
	"github.com/Project-DevX/healthmate-sub000/pkg/external"
)

// environment is what every subcommand needs
type environment struct {
	lite   *config.LiteConfig
	logger *logrus.Logger
}

func loadEnvironment() (*environment, error) {
	lite := config.LoadLiteConfig()
	logger, err := config.NewLogger(lite.Logging())
	if err != nil {
		return nil, err
	}
	return &environment{lite: lite, logger: logger}, nil
}

// openArchive opens PostgreSQL when a database URL is given and the local
// SQLite archive otherwise
func (env *environment) openArchive(databaseURL string) (archive.Store, error) {
	if databaseURL != "" {
		return archive.Open(domain.ArchiveConfig{Driver: archive.DriverPostgres}, databaseURL)
	}
	if err := env.lite.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return archive.Open(env.lite.Archive(), "")
}

// openRecordSource prefers a JSON record file and falls back to MongoDB
func (env *environment) openRecordSource(ctx context.Context, recordsPath string) (domain.RecordSource, func(), error) {
	if recordsPath != "" {
		source, err := external.LoadRecordFile(recordsPath)
		if err != nil {
			return nil, nil, err
		}
		return source, func() {}, nil
	}

	if env.lite.MongoURI == "" {
		return nil, nil, fmt.Errorf("%w: --records or CCAS_MONGO_URI is required", domain.ErrConfiguration)
	}
	storeConfig := domain.DocumentStoreConfig{URI: env.lite.MongoURI, Database: env.lite.MongoDatabase}
	mongoSource, err := external.NewMongoRecordSource(ctx, env.logger, storeConfig)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoSource.Close(ctx); err != nil {
			env.logger.WithError(err).Warn("Failed to disconnect from document store")
		}
	}
	return external.NewResilientRecordSource(env.logger, mongoSource, storeConfig), closer, nil
}

// newAssessmentService wires the pipeline over records; snapshots may be nil
func (env *environment) newAssessmentService(records domain.RecordSource, snapshots domain.SnapshotArchive) (*service.AssessmentService, error) {
	table := engine.NewThresholdTable()
	if env.lite.ThresholdsFile != "" {
		if err := table.LoadThresholdOverrides(env.lite.ThresholdsFile); err != nil {
			return nil, err
		}
	}
	featureEngine := engine.NewFeatureEngine(env.logger, table, engine.Options{})

	narrative := env.lite.Narrative()
	var consultant domain.NarrativeConsultant = external.NewStubConsultant()
	if narrative.Provider == "openai" {
		consultant = service.NewGenerativeConsultant(env.logger, external.NewNarrativeClient(env.logger, narrative))
	}
	panel := service.NewSpecialistPanel(env.logger, consultant, narrative.ConsultTimeout, narrative.RetryCount)

	store := cache.NewAssessmentCache(env.logger, domain.AssessmentConfig{
		TTL:        env.lite.CacheTTL,
		MaxEntries: env.lite.CacheMaxItems,
	})

	var opts []service.Option
	if snapshots != nil {
		opts = append(opts, service.WithArchive(snapshots))
	}
	return service.NewAssessmentService(env.logger, records, featureEngine, panel, store, opts...), nil
}

// openOutput returns stdout for an empty path
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
