// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

// Package memstore is an in-memory implementation of the ingest store,
// used for tests and ephemeral deployments (store driver "memory").
//
// It expresses the upsert as an explicit two-branch write: look the key up,
// then either insert the full row or refresh only last_updated and active.
package memstore
