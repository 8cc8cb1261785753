// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package metrics provides Prometheus instrumentation for Roadwatch.

Collectors are registered on the default registry through promauto and
exposed by the API server at /metrics:

	curl http://localhost:8080/metrics

# Available Metrics

Feed:
  - roadwatch_feed_fetch_duration_seconds{feed}
  - roadwatch_feed_fetch_errors_total{feed,reason}
  - roadwatch_feed_malformed_records_total{feed}

Ingest:
  - roadwatch_ingest_records_total{partition,kind,outcome}
  - roadwatch_ingest_deactivated_total{partition,kind}
  - roadwatch_ingest_segments_total{partition}
  - roadwatch_partition_cycle_duration_seconds{partition}
  - roadwatch_partition_cycle_errors_total{partition,stage}
  - roadwatch_cycle_duration_seconds

Statistics:
  - roadwatch_statistics_hours_computed_total{partition}
  - roadwatch_active_jams{partition}, roadwatch_active_alerts{partition}

Stores, sinks and the circuit breaker have their own families
(roadwatch_store_*, roadwatch_events_*, circuit_breaker_*).
*/
package metrics
