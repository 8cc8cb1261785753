// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

// Package postgres implements the PostGIS-backed ingest.Store on a pgx pool.
//
// The schema mirrors the DuckDB store with native geometry(Point, 4326) and
// geometry(LineString, 4326) columns. The upsert is a single
// INSERT ... ON CONFLICT (uuid, published_at) DO UPDATE that only touches
// last_updated and active; RETURNING (xmax = 0) tells an insert from a
// refresh. Segments are appended with COPY.
//
// Integration tests run against a PostGIS container and are built with the
// integration tag:
//
//	go test -tags integration ./internal/postgres/...
package postgres
