// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package models

import "time"

// HourlyStatistic is the aggregate snapshot for one UTC hour bucket
// [StatTime, StatTime+1h). Recomputing a bucket overwrites the row.
//
// Averages are zero when the bucket holds no jams.
type HourlyStatistic struct {
	StatTime          time.Time `json:"stat_time"`
	TotalActiveJams   int64     `json:"total_active_jams"`
	TotalActiveAlerts int64     `json:"total_active_alerts"`
	AvgSpeedKMH       float64   `json:"avg_speed_kmh"`
	AvgJamLength      float64   `json:"avg_jam_length"`
	AvgDelay          float64   `json:"avg_delay"`
	AvgJamLevel       float64   `json:"avg_jam_level"`
	ComputedAt        time.Time `json:"computed_at"`
}

// BucketEnd returns the exclusive end of the statistic's hour bucket.
func (s *HourlyStatistic) BucketEnd() time.Time {
	return s.StatTime.Add(time.Hour)
}
