// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

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

	"github.com/tomtom215/roadwatch/internal/api"
	"github.com/tomtom215/roadwatch/internal/config"
	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/storage"
	"github.com/tomtom215/roadwatch/internal/supervisor"
	"github.com/tomtom215/roadwatch/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logging is not configured yet; the default logger writes JSON to stderr.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Int("feeds", len(cfg.Feeds)).
		Str("log_level", cfg.Logging.Level).
		Msg("Starting roadwatch")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := storage.NewRegistry(cfg.DuckDB, cfg.Postgres)
	defer func() {
		if err := registry.CloseAll(); err != nil {
			logging.Error().Err(err).Msg("Failed to close stores")
		}
	}()

	sources, err := buildSources(ctx, cfg, registry)
	if err != nil {
		return err
	}
	logging.Info().
		Int("sources", len(sources)).
		Int("stores", registry.Len()).
		Msg("Stores opened")

	publisher, err := buildPublisher(cfg.Events)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()

	orchestrator := ingest.NewOrchestrator(sources, ingest.OrchestratorConfig{
		Interval:           cfg.Ingest.Interval,
		StalenessThreshold: cfg.Ingest.StalenessThreshold,
		RunOnStart:         cfg.Ingest.RunOnStart,
		ParallelPartitions: cfg.Ingest.ParallelPartitions,
		BackfillFrom:       backfillStart(cfg.Statistics.BackfillFrom),
		Notifier:           publisher,
	})

	handler := api.NewHandler(orchestrator)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if publisher.HasOutbox() {
		tree.AddDataService(services.NewOutboxRetryService(publisher, cfg.Events.Outbox.RetryInterval))
	}
	tree.AddIngestService(services.NewIngestService(orchestrator))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", addr).
		Dur("interval", cfg.Ingest.Interval).
		Strs("sinks", publisher.Sinks()).
		Bool("outbox", publisher.HasOutbox()).
		Msg("Supervisor tree starting")

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Services did not stop within the shutdown timeout")
	}
	return nil
}
