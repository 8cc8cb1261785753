// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package storage opens partition stores by driver and shares them between
partitions that point at the same database.

Three drivers are supported:

  - duckdb: an embedded DuckDB file (internal/database)
  - postgres: a PostGIS database over pgx (internal/postgres)
  - memory: a process-local store (internal/memstore), mostly for tests
    and dry runs

Usage:

	reg := storage.NewRegistry(cfg.DuckDB, cfg.Postgres)
	defer reg.CloseAll()

	store, err := reg.Get(ctx, partition.Name, partition.Store)
*/
package storage
