// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

// Package testinfra provides test infrastructure shared by package tests.
//
// # PostGIS Container
//
// NewPostGISContainer starts a real PostGIS server with testcontainers-go.
// It is only compiled with the integration build tag:
//
//	func TestPostgresStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostGISContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//	}
//
// # Mock Feed Server
//
// MockFeedServer serves a fixed feed document over HTTP for end-to-end
// tests of the ingestion loop without network access.
package testinfra
