package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/niramay/risk-engine/internal/api"
	"github.com/niramay/risk-engine/internal/audit"
	"github.com/niramay/risk-engine/internal/config"
	"github.com/niramay/risk-engine/internal/rag"
	"github.com/niramay/risk-engine/internal/reference"
	"github.com/niramay/risk-engine/internal/service"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting Niramay risk engine")

	// Reference tables are mandatory; refuse to start without them.
	tables, err := reference.Load(cfg.Reference.Dir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load reference tables")
	}
	logger.WithField("versions", tables.Versions()).Info("Reference tables loaded")

	auditStore, err := audit.New(cfg.Audit)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open audit store")
	}
	if auditStore != nil {
		defer auditStore.Close()
	}

	// The cache and the retrieval/generation stack are best effort: a
	// missing Redis or index only disables explanations.
	passageCache, err := rag.NewPassageCache(cfg.Cache)
	if err != nil {
		logger.WithError(err).Warn("Passage cache unavailable, continuing without it")
		passageCache = nil
	}
	if passageCache != nil {
		defer passageCache.Close()
	}

	retriever := rag.NewRetriever(cfg.Retrieval, passageCache, logger)
	generator := rag.NewGenerator(cfg.Generation, logger)

	orchestrator := service.NewOrchestrator(logger, tables, retriever, generator, auditStore, cfg.Pipeline)
	server := api.NewServer(cfg, logger, orchestrator, tables, auditStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
