package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/api"
	"github.com/Project-DevX/healthmate-sub000/internal/config"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager(os.Getenv("CCAS_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise dependencies")
	}
	defer app.Close()

	server := api.NewServer(configManager, logger, app.service, app.serverOptions...)

	logger.WithFields(logrus.Fields{
		"host":      cfg.Server.Host,
		"port":      cfg.Server.Port,
		"archive":   cfg.Archive.Driver,
		"narrative": cfg.Narrative.Provider,
	}).Info("Starting CCAS server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
