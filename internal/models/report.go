// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package models

import "time"

// BatchCounts summarizes one upsert batch.
type BatchCounts struct {
	Inserted    int   `json:"inserted"`
	Refreshed   int   `json:"refreshed"`
	Skipped     int   `json:"skipped"`
	Deactivated int64 `json:"deactivated"`
}

// PartitionReport describes one committed partition unit of work.
type PartitionReport struct {
	ID          string            `json:"id"`
	CycleID     string            `json:"cycle_id"`
	Source      string            `json:"source"`
	Partition   string            `json:"partition"`
	Alerts      BatchCounts       `json:"alerts"`
	Jams        BatchCounts       `json:"jams"`
	Segments    int               `json:"segments"`
	Statistics  []HourlyStatistic `json:"statistics"`
	Duration    time.Duration     `json:"duration_ns"`
	CompletedAt time.Time         `json:"completed_at"`
}

// CurrentStatistic returns the most recent hour in the report, if any.
func (r *PartitionReport) CurrentStatistic() (HourlyStatistic, bool) {
	if len(r.Statistics) == 0 {
		return HourlyStatistic{}, false
	}
	latest := r.Statistics[0]
	for _, s := range r.Statistics[1:] {
		if s.StatTime.After(latest.StatTime) {
			latest = s
		}
	}
	return latest, true
}
