// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package supervisor runs the service's long-lived components under a suture
supervision tree.

	roadwatch
	├── data-layer    outbox retry loop
	├── ingest-layer  polling orchestrator
	└── api-layer     HTTP server

A component that returns an error or panics is restarted with backoff by
its layer's supervisor without disturbing the other layers. Supervisor
events are logged through sutureslog into the zerolog stream.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewOutboxRetryService(publisher, cfg.Events.Outbox.RetryInterval))
	tree.AddIngestService(services.NewIngestService(orchestrator))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)
*/
package supervisor
