// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package api

// Error codes returned in APIError.Code.
const (
	codeValidation       = "VALIDATION_ERROR"
	codeNotFound         = "NOT_FOUND"
	codeStoreUnavailable = "STORE_UNAVAILABLE"
	codeNotRunning       = "INGEST_NOT_RUNNING"
	codeDatabase         = "DATABASE_ERROR"
	codeRateLimited      = "RATE_LIMITED"
	codeInternal         = "INTERNAL_ERROR"
)
