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

// recordingTx is a minimal Tx that keys rows like a real store and records
// the arguments of its last calls.
type recordingTx struct {
	alerts map[string]models.Alert
	jams   map[string]models.Jam
	stats  []models.HourlyStatistic

	agg         HourAggregate
	aggStarts   []time.Time
	deactivated int64
	table       Table
	cutoff      time.Time
	err         error
	upsertErrAt int // fail the nth upsert when > 0
	upserts     int
}

func rowKey(uuid string, published time.Time) string {
	return uuid + "@" + published.Format(time.RFC3339Nano)
}

func (r *recordingTx) upsertErr() error {
	r.upserts++
	if r.upsertErrAt > 0 && r.upserts == r.upsertErrAt {
		return r.err
	}
	return nil
}

func (r *recordingTx) UpsertAlert(_ context.Context, a *models.Alert) (UpsertOutcome, error) {
	if err := r.upsertErr(); err != nil {
		return 0, err
	}
	if r.alerts == nil {
		r.alerts = make(map[string]models.Alert)
	}
	k := rowKey(a.UUID, a.PublishedAt)
	if _, ok := r.alerts[k]; ok {
		return Refreshed, nil
	}
	r.alerts[k] = *a
	return Inserted, nil
}

func (r *recordingTx) UpsertJam(_ context.Context, j *models.Jam) (UpsertOutcome, error) {
	if err := r.upsertErr(); err != nil {
		return 0, err
	}
	if r.jams == nil {
		r.jams = make(map[string]models.Jam)
	}
	k := rowKey(j.UUID, j.PublishedAt)
	if _, ok := r.jams[k]; ok {
		return Refreshed, nil
	}
	r.jams[k] = *j
	return Inserted, nil
}

func (r *recordingTx) InsertSegments(_ context.Context, s []models.Segment) (int, error) {
	return len(s), nil
}

func (r *recordingTx) Deactivate(_ context.Context, table Table, cutoff time.Time) (int64, error) {
	r.table, r.cutoff = table, cutoff
	if r.upsertErrAt == 0 && r.err != nil {
		return 0, r.err
	}
	return r.deactivated, nil
}

func (r *recordingTx) AggregateHour(_ context.Context, start time.Time) (HourAggregate, error) {
	r.aggStarts = append(r.aggStarts, start)
	return r.agg, nil
}

func (r *recordingTx) UpsertStatistic(_ context.Context, s *models.HourlyStatistic) error {
	r.stats = append(r.stats, *s)
	return nil
}

func (r *recordingTx) Commit(context.Context) error   { return nil }
func (r *recordingTx) Rollback(context.Context) error { return nil }
