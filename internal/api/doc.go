// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package api serves the HTTP status and control surface of the ingestion
service using the chi router.

Endpoints:

	GET  /healthz                      liveness
	GET  /readyz                       pings every partition store (503 on failure)
	GET  /metrics                      Prometheus metrics
	GET  /api/v1/partitions            configured partitions and last cycle time
	GET  /api/v1/statistics            hourly statistics (?partition=&from=&to=)
	POST /api/v1/ingest/trigger        request an immediate cycle (202)
	POST /api/v1/statistics/backfill   recompute hours (?partition=&from=)

Timestamps in query parameters accept RFC 3339, "YYYY-MM-DD HH:MM" and
"DD.MM.YYYY HH:MM" (UTC). The statistics range defaults to the last 24
hours. When only one partition is configured the partition parameter may
be omitted.

Every /api/v1 route is rate limited per client IP with httprate. All JSON
bodies use the models.APIResponse envelope.
*/
package api
