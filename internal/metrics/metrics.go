// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed Metrics
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roadwatch_feed_fetch_duration_seconds",
			Help:    "Duration of upstream feed fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_feed_fetch_errors_total",
			Help: "Total number of failed feed fetches",
		},
		[]string{"feed", "reason"}, // reason: "transport", "status", "decode", "rejected"
	)

	FeedMalformedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_feed_malformed_records_total",
			Help: "Total number of feed records that could not be decoded",
		},
		[]string{"feed"},
	)

	// Ingest Metrics
	IngestRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_ingest_records_total",
			Help: "Total number of ingested records by outcome",
		},
		[]string{"partition", "kind", "outcome"}, // kind: "alert", "jam"; outcome: "inserted", "refreshed", "skipped"
	)

	IngestDeactivated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_ingest_deactivated_total",
			Help: "Total number of events marked inactive by the sweeper",
		},
		[]string{"partition", "kind"},
	)

	IngestSegments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_ingest_segments_total",
			Help: "Total number of jam segments written",
		},
		[]string{"partition"},
	)

	PartitionCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roadwatch_partition_cycle_duration_seconds",
			Help:    "Duration of one partition's persist and aggregate pass",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"partition"},
	)

	PartitionCycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_partition_cycle_errors_total",
			Help: "Total number of failed partition passes",
		},
		[]string{"partition", "stage"}, // stage: "alerts", "jams", "segments", "statistics"
	)

	PartitionLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roadwatch_partition_last_success_timestamp",
			Help: "Unix timestamp of the last successful partition pass",
		},
		[]string{"partition"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roadwatch_cycle_duration_seconds",
			Help:    "Duration of a full ingestion cycle across all feeds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Statistics Metrics
	StatisticsHoursComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_statistics_hours_computed_total",
			Help: "Total number of hourly statistic rows computed",
		},
		[]string{"partition"},
	)

	ActiveJams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roadwatch_active_jams",
			Help: "Active jams in the current hour bucket",
		},
		[]string{"partition"},
	)

	ActiveAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roadwatch_active_alerts",
			Help: "Active alerts in the current hour bucket",
		},
		[]string{"partition"},
	)

	// Store Metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roadwatch_store_query_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_store_query_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"driver", "operation"},
	)

	// Event Sink Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_events_published_total",
			Help: "Total number of partition reports published per sink",
		},
		[]string{"sink"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_events_failed_total",
			Help: "Total number of failed report publishes per sink",
		},
		[]string{"sink"},
	)

	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roadwatch_outbox_pending",
			Help: "Reports waiting in the outbox for delivery",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadwatch_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roadwatch_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// FetchErrorReason classifies a fetch failure for the reason label.
type FetchErrorReason interface {
	Reason() string
}

// RecordFeedFetch records one upstream fetch.
func RecordFeedFetch(feed string, duration time.Duration, malformed int, err error) {
	FeedFetchDuration.WithLabelValues(feed).Observe(duration.Seconds())
	if malformed > 0 {
		FeedMalformedRecords.WithLabelValues(feed).Add(float64(malformed))
	}
	if err != nil {
		reason := "other"
		var r FetchErrorReason
		if errors.As(err, &r) {
			reason = r.Reason()
		}
		FeedFetchErrors.WithLabelValues(feed, reason).Inc()
	}
}

// RecordBatch records the outcome counts of one upsert batch.
func RecordBatch(partition, kind string, inserted, refreshed, skipped int, deactivated int64) {
	IngestRecords.WithLabelValues(partition, kind, "inserted").Add(float64(inserted))
	IngestRecords.WithLabelValues(partition, kind, "refreshed").Add(float64(refreshed))
	IngestRecords.WithLabelValues(partition, kind, "skipped").Add(float64(skipped))
	IngestDeactivated.WithLabelValues(partition, kind).Add(float64(deactivated))
}

// RecordPartitionCycle records a partition pass. A non-empty stage marks a failure.
func RecordPartitionCycle(partition string, duration time.Duration, stage string) {
	PartitionCycleDuration.WithLabelValues(partition).Observe(duration.Seconds())
	if stage != "" {
		PartitionCycleErrors.WithLabelValues(partition, stage).Inc()
		return
	}
	PartitionLastSuccess.WithLabelValues(partition).Set(float64(time.Now().Unix()))
}

// RecordStatistics records computed hours and the current-hour activity gauges.
func RecordStatistics(partition string, hours int, activeJams, activeAlerts int64) {
	StatisticsHoursComputed.WithLabelValues(partition).Add(float64(hours))
	ActiveJams.WithLabelValues(partition).Set(float64(activeJams))
	ActiveAlerts.WithLabelValues(partition).Set(float64(activeAlerts))
}

// RecordStoreQuery records a store operation metric.
func RecordStoreQuery(driver, operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(driver, operation).Inc()
	}
}

// RecordEventPublish records a report publish attempt on a sink.
func RecordEventPublish(sink string, err error) {
	if err != nil {
		EventsFailed.WithLabelValues(sink).Inc()
		return
	}
	EventsPublished.WithLabelValues(sink).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
