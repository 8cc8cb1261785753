// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// histogramSamples returns the observation count of a histogram series.
func histogramSamples(t *testing.T, vec *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	obs, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v) error = %v", labels, err)
	}
	var m io_prometheus_client.Metric
	if err := obs.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

type reasonError struct{ reason string }

func (e *reasonError) Error() string  { return "fetch failed: " + e.reason }
func (e *reasonError) Reason() string { return e.reason }

func TestRecordFeedFetch(t *testing.T) {
	feed := "test-feed-fetch"

	RecordFeedFetch(feed, 20*time.Millisecond, 0, nil)
	if got := histogramSamples(t, FeedFetchDuration, feed); got != 1 {
		t.Errorf("fetch duration samples = %d, want 1", got)
	}
	if got := testutil.ToFloat64(FeedFetchErrors.WithLabelValues(feed, "status")); got != 0 {
		t.Errorf("status errors = %v, want 0", got)
	}

	RecordFeedFetch(feed, 5*time.Millisecond, 3, fmt.Errorf("wrapped: %w", &reasonError{reason: "status"}))
	if got := testutil.ToFloat64(FeedFetchErrors.WithLabelValues(feed, "status")); got != 1 {
		t.Errorf("status errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(FeedMalformedRecords.WithLabelValues(feed)); got != 3 {
		t.Errorf("malformed = %v, want 3", got)
	}

	RecordFeedFetch(feed, time.Millisecond, 0, errors.New("plain"))
	if got := testutil.ToFloat64(FeedFetchErrors.WithLabelValues(feed, "other")); got != 1 {
		t.Errorf("other errors = %v, want 1", got)
	}
	if got := histogramSamples(t, FeedFetchDuration, feed); got != 3 {
		t.Errorf("fetch duration samples = %d, want 3", got)
	}
}

func TestRecordBatch(t *testing.T) {
	partition := "test-batch"
	RecordBatch(partition, "jam", 4, 2, 1, 3)
	RecordBatch(partition, "jam", 1, 0, 0, 0)

	tests := []struct {
		outcome string
		want    float64
	}{
		{"inserted", 5},
		{"refreshed", 2},
		{"skipped", 1},
	}
	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			if got := testutil.ToFloat64(IngestRecords.WithLabelValues(partition, "jam", tt.outcome)); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.outcome, got, tt.want)
			}
		})
	}
	if got := testutil.ToFloat64(IngestDeactivated.WithLabelValues(partition, "jam")); got != 3 {
		t.Errorf("deactivated = %v, want 3", got)
	}
}

func TestRecordPartitionCycle(t *testing.T) {
	partition := "test-cycle"

	RecordPartitionCycle(partition, time.Second, "jams")
	if got := testutil.ToFloat64(PartitionCycleErrors.WithLabelValues(partition, "jams")); got != 1 {
		t.Errorf("cycle errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(PartitionLastSuccess.WithLabelValues(partition)); got != 0 {
		t.Errorf("last success = %v, want unset after failure", got)
	}

	before := float64(time.Now().Unix())
	RecordPartitionCycle(partition, time.Second, "")
	if got := testutil.ToFloat64(PartitionLastSuccess.WithLabelValues(partition)); got < before {
		t.Errorf("last success = %v, want >= %v", got, before)
	}
}

func TestRecordStatistics(t *testing.T) {
	partition := "test-stats"
	RecordStatistics(partition, 3, 12, 7)
	RecordStatistics(partition, 1, 10, 2)

	if got := testutil.ToFloat64(StatisticsHoursComputed.WithLabelValues(partition)); got != 4 {
		t.Errorf("hours computed = %v, want 4", got)
	}
	if got := testutil.ToFloat64(ActiveJams.WithLabelValues(partition)); got != 10 {
		t.Errorf("active jams = %v, want 10", got)
	}
	if got := testutil.ToFloat64(ActiveAlerts.WithLabelValues(partition)); got != 2 {
		t.Errorf("active alerts = %v, want 2", got)
	}
}

func TestRecordStoreQueryAndEvents(t *testing.T) {
	RecordStoreQuery("memory-test", "upsert_alert", time.Millisecond, nil)
	RecordStoreQuery("memory-test", "upsert_alert", time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(StoreQueryErrors.WithLabelValues("memory-test", "upsert_alert")); got != 1 {
		t.Errorf("store errors = %v, want 1", got)
	}

	RecordEventPublish("sink-test", nil)
	RecordEventPublish("sink-test", nil)
	RecordEventPublish("sink-test", errors.New("down"))
	if got := testutil.ToFloat64(EventsPublished.WithLabelValues("sink-test")); got != 2 {
		t.Errorf("published = %v, want 2", got)
	}
	if got := testutil.ToFloat64(EventsFailed.WithLabelValues("sink-test")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/test/endpoint", "200", 15*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/test/endpoint", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}
