// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package middleware provides HTTP middleware shared by the API router.

  - RequestID: takes X-Request-ID from the caller or generates one, echoes
    it in the response, and uses it as the log correlation ID
  - PrometheusMetrics: request count and latency by method, route pattern
    and status

Both are plain func(http.Handler) http.Handler and plug into chi's Use:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
