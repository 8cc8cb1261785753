// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package main is the entry point for the roadwatch server.

Roadwatch polls traffic incident feeds, splits each document into
partitions, keeps one store per partition current (upserting reports and
deactivating ones that drop out of the feed) and maintains hourly traffic
statistics per partition.

# Application Architecture

	RootSupervisor ("roadwatch")
	├── DataSupervisor ("data-layer")
	│   └── Outbox retry loop (optional)
	├── IngestSupervisor ("ingest-layer")
	│   └── Ingestion orchestrator
	└── APISupervisor ("api-layer")
	    └── HTTP server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, optional YAML file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Stores: one DuckDB, PostgreSQL or in-memory store per distinct location
 4. Feeds: HTTP client with rate limiting behind a circuit breaker
 5. Events: optional NATS, Redis and MQTT sinks with a BadgerDB outbox
 6. Orchestrator: polling loop, staleness sweep and statistics
 7. HTTP server: Chi router with health, metrics and statistics endpoints
 8. Supervisor tree: Suture v4 process supervision

# Configuration

The smallest deployment needs only a feed URL:

	FEED_URL=https://example.org/traffic.json DUCKDB_PATH=/data/traffic.duckdb ./roadwatch

Multiple feeds and partitions are configured in config.yaml (see
internal/config). STATISTICS_BACKFILL_FROM recomputes statistics from the
given hour on each partition's first successful cycle.

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains, the
orchestrator finishes its in-flight cycle, and stores and sinks are closed.
*/
package main
