// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

// Package database implements the DuckDB-backed ingest.Store.
//
// # Overview
//
// Each partition that names driver duckdb gets a database file (several
// partitions may share one). The file holds four tables:
//
//   - alerts and jams: one row per (uuid, published_at), refreshed in place
//   - segments: append-only edges extracted from jams
//   - sum_statistics: one row per UTC hour, overwritten on recompute
//
// # Upsert
//
// The upsert is an explicit two-branch write inside the partition's
// transaction. An UPDATE of last_updated and active for the key runs first;
// when it matches no row, the full row is INSERTed. Descriptive columns are
// never rewritten after the first insert. The UNIQUE (uuid, published_at)
// constraint stays as a guard.
//
// # Spatial Extension
//
// Locations and jam lines are GEOMETRY columns written with
// ST_GeomFromText when the spatial extension loads. With
// StoreOptions.SpatialOptional the store falls back to WKT text columns
// instead of failing. Extension statements run under a hard timeout because
// CGO calls ignore context cancellation.
//
// # Schema
//
// Schema changes are versioned migrations recorded in schema_migrations.
// New and Close both CHECKPOINT so the WAL never replays schema statements.
//
// # Concurrency
//
// One write transaction is open per database at a time; Begin waits for the
// previous one to finish. Reads (ListStatistics) use the connection pool.
package database
