// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

// Package services adapts roadwatch components to suture.Service.
//
// Each wrapper blocks in Serve until its context is canceled and returns
// an error when the component fails, so the supervisor can restart it.
package services
