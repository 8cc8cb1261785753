// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package config loads and validates Roadwatch configuration.

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file (CONFIG_PATH, ./config.yaml or /etc/roadwatch/config.yaml), then
mapped environment variables. The merged result is checked with
go-playground/validator struct tags followed by semantic validation.

A multi-region deployment is described in YAML:

	feeds:
	  - name: jmk
	    url: https://example.org/feed/jmk
	    partitions:
	      - name: brno
	        filter: {field: city, op: eq, values: [Brno]}
	        store: {driver: duckdb, path: /data/brno.duckdb}
	      - name: jmk
	        filter: {field: city, op: ne, values: [Brno]}
	        store: {driver: postgres, dsn: postgres://roadwatch@db/jmk}

A single-feed deployment needs only environment variables:

	FEED_URL=https://example.org/feed DUCKDB_PATH=/data/roadwatch.duckdb

Key Environment Variables:
  - FEED_URL, FEED_NAME, STORE_DRIVER, DUCKDB_PATH, POSTGRES_DSN
  - INGEST_INTERVAL (default 2m), STALENESS_THRESHOLD (default 5m)
  - PARALLEL_PARTITIONS (default 1, sequential)
  - STATS_BACKFILL_FROM (e.g. "25.04.2024 00:00")
  - NATS_ENABLED, REDIS_ENABLED, MQTT_ENABLED, OUTBOX_ENABLED
  - HTTP_PORT (default 8080), LOG_LEVEL, LOG_FORMAT
*/
package config
