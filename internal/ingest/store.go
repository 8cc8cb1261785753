// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"context"
	"time"

	"github.com/tomtom215/roadwatch/internal/models"
)

// Table names an event table subject to the lifecycle sweep.
type Table string

// Event tables.
const (
	TableAlerts Table = "alerts"
	TableJams   Table = "jams"

	tableStatistics Table = "sum_statistics"
)

// UpsertOutcome tells whether an upsert created a row or refreshed one.
type UpsertOutcome int

const (
	// Inserted means the (uuid, published_at) key was new.
	Inserted UpsertOutcome = iota
	// Refreshed means the key existed and only last_updated and active changed.
	Refreshed
)

func (o UpsertOutcome) String() string {
	if o == Refreshed {
		return "refreshed"
	}
	return "inserted"
}

// HourAggregate is the raw aggregate of one hour bucket. Averages are nil
// when no jam overlaps the bucket.
type HourAggregate struct {
	ActiveJams   int64
	ActiveAlerts int64
	AvgSpeedKMH  *float64
	AvgJamLength *float64
	AvgDelay     *float64
	AvgJamLevel  *float64
}

// Store is a persistence backend for one or more partitions.
type Store interface {
	// Name identifies the store in logs and metrics.
	Name() string
	// Begin opens a unit of work. Nothing is visible to other readers until Commit.
	Begin(ctx context.Context) (Tx, error)
	// ListStatistics returns statistic rows with from <= stat_time < to, oldest first.
	ListStatistics(ctx context.Context, from, to time.Time) ([]models.HourlyStatistic, error)
	Ping(ctx context.Context) error
	Close() error
}

// Tx is one partition's unit of work.
//
// UpsertAlert and UpsertJam insert a new (uuid, published_at) key with every
// field, or, when the key exists, set only last_updated and active = true.
// Descriptive fields are never overwritten.
type Tx interface {
	UpsertAlert(ctx context.Context, a *models.Alert) (UpsertOutcome, error)
	UpsertJam(ctx context.Context, j *models.Jam) (UpsertOutcome, error)

	// InsertSegments appends rows without deduplication.
	InsertSegments(ctx context.Context, segments []models.Segment) (int, error)

	// Deactivate sets active = false on rows of table with active = true and
	// last_updated < cutoff, in one bulk statement, and returns the rows changed.
	Deactivate(ctx context.Context, table Table, cutoff time.Time) (int64, error)

	// AggregateHour aggregates the events overlapping [start, start+1h),
	// as defined by OverlapsHour.
	AggregateHour(ctx context.Context, start time.Time) (HourAggregate, error)

	// UpsertStatistic writes a statistic row, overwriting any row for the same stat_time.
	UpsertStatistic(ctx context.Context, s *models.HourlyStatistic) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// OverlapsHour reports whether an event's activity interval overlaps the
// hour bucket starting at start: published_at <= start+1h and last_updated
// is unset or >= start.
func OverlapsHour(publishedAt, lastUpdated, start time.Time) bool {
	if publishedAt.After(start.Add(time.Hour)) {
		return false
	}
	return lastUpdated.IsZero() || !lastUpdated.Before(start)
}
