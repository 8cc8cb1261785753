// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/models"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("database: transaction already committed or rolled back")

// tx is one unit of work. It holds the store's writer token until Commit
// or Rollback.
type tx struct {
	db   *DB
	tx   *sql.Tx
	done bool
}

// geomArg returns the placeholder expression for a WKT geometry parameter.
func (t *tx) geomArg() string {
	if t.db.spatialAvailable {
		return "ST_GeomFromText(?)"
	}
	return "?"
}

// refresh is the first branch of the upsert: it bumps last_updated (never
// backwards) and reactivates the row for an existing key.
func (t *tx) refresh(ctx context.Context, table string, uuid string, publishedAt, lastUpdated time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE `+table+`
		 SET last_updated = GREATEST(COALESCE(last_updated, ?), ?), active = TRUE
		 WHERE uuid = ? AND published_at = ?`,
		lastUpdated, lastUpdated, uuid, publishedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *tx) UpsertAlert(ctx context.Context, a *models.Alert) (outcome ingest.UpsertOutcome, err error) {
	if t.done {
		return 0, ErrTxDone
	}
	defer func(start time.Time) { observe("upsert_alert", start, err) }(time.Now())

	refreshed, err := t.refresh(ctx, "alerts", a.UUID, a.PublishedAt.UTC(), a.LastUpdated.UTC())
	if err != nil {
		return 0, fmt.Errorf("refresh alert %s: %w", a.UUID, err)
	}
	if refreshed {
		return ingest.Refreshed, nil
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO alerts (
			uuid, published_at, last_updated, active, country, city, type, subtype,
			street, report_rating, report_by_municipality_user, confidence,
			reliability, road_type, magvar, report_description, location
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, `+t.geomArg()+`)`,
		a.UUID, a.PublishedAt.UTC(), a.LastUpdated.UTC(), a.Active, a.Country, a.City, a.Type, a.Subtype,
		a.Street, nullable(a.ReportRating), a.ReportByMunicipalityUser, nullable(a.Confidence),
		nullable(a.Reliability), nullable(a.RoadType), nullable(a.Magvar), a.ReportDescription, a.Location.WKT())
	if err != nil {
		return 0, fmt.Errorf("insert alert %s: %w", a.UUID, err)
	}
	return ingest.Inserted, nil
}

func (t *tx) UpsertJam(ctx context.Context, j *models.Jam) (outcome ingest.UpsertOutcome, err error) {
	if t.done {
		return 0, ErrTxDone
	}
	defer func(start time.Time) { observe("upsert_jam", start, err) }(time.Now())

	refreshed, err := t.refresh(ctx, "jams", j.UUID, j.PublishedAt.UTC(), j.LastUpdated.UTC())
	if err != nil {
		return 0, fmt.Errorf("refresh jam %s: %w", j.UUID, err)
	}
	if refreshed {
		return ingest.Refreshed, nil
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO jams (
			uuid, published_at, last_updated, active, country, city, jam_level,
			speed_kmh, jam_length, turn_type, end_node, start_node, speed,
			road_type, delay, street, blocking_alert_uuid, jam_line
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, `+t.geomArg()+`)`,
		j.UUID, j.PublishedAt.UTC(), j.LastUpdated.UTC(), j.Active, j.Country, j.City, nullable(j.JamLevel),
		nullable(j.SpeedKMH), nullable(j.JamLength), j.TurnType, j.EndNode, j.StartNode, nullable(j.Speed),
		nullable(j.RoadType), nullable(j.Delay), j.Street, j.BlockingAlertUUID, j.Line.WKT())
	if err != nil {
		return 0, fmt.Errorf("insert jam %s: %w", j.UUID, err)
	}
	return ingest.Inserted, nil
}

func (t *tx) InsertSegments(ctx context.Context, segments []models.Segment) (written int, err error) {
	if t.done {
		return 0, ErrTxDone
	}
	if len(segments) == 0 {
		return 0, nil
	}
	defer func(start time.Time) { observe("insert_segments", start, err) }(time.Now())

	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO segments (jam_id, from_node, to_node, segment_id, is_forward) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare segment insert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for i := range segments {
		s := &segments[i]
		if _, err := stmt.ExecContext(ctx, nullable(s.JamID), nullable(s.FromNode), nullable(s.ToNode),
			nullable(s.SegmentID), nullable(s.IsForward)); err != nil {
			return written, fmt.Errorf("insert segment: %w", err)
		}
		written++
	}
	return written, nil
}

func (t *tx) Deactivate(ctx context.Context, table ingest.Table, cutoff time.Time) (n int64, err error) {
	if t.done {
		return 0, ErrTxDone
	}
	if table != ingest.TableAlerts && table != ingest.TableJams {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	defer func(start time.Time) { observe("deactivate", start, err) }(time.Now())

	res, err := t.tx.ExecContext(ctx,
		`UPDATE `+string(table)+` SET active = FALSE WHERE active AND last_updated < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *tx) AggregateHour(ctx context.Context, start time.Time) (agg ingest.HourAggregate, err error) {
	if t.done {
		return agg, ErrTxDone
	}
	defer func(begin time.Time) { observe("aggregate_hour", begin, err) }(time.Now())

	start = start.UTC()
	end := start.Add(time.Hour)

	var speed, length, delay, level sql.NullFloat64
	err = t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(speed_kmh), AVG(jam_length), AVG(delay), AVG(jam_level)
		FROM jams
		WHERE published_at <= ? AND (last_updated IS NULL OR last_updated >= ?)`,
		end, start).Scan(&agg.ActiveJams, &speed, &length, &delay, &level)
	if err != nil {
		return agg, fmt.Errorf("aggregate jams: %w", err)
	}

	err = t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM alerts
		WHERE published_at <= ? AND (last_updated IS NULL OR last_updated >= ?)`,
		end, start).Scan(&agg.ActiveAlerts)
	if err != nil {
		return agg, fmt.Errorf("aggregate alerts: %w", err)
	}

	agg.AvgSpeedKMH = floatPtr(speed)
	agg.AvgJamLength = floatPtr(length)
	agg.AvgDelay = floatPtr(delay)
	agg.AvgJamLevel = floatPtr(level)
	return agg, nil
}

func (t *tx) UpsertStatistic(ctx context.Context, s *models.HourlyStatistic) (err error) {
	if t.done {
		return ErrTxDone
	}
	defer func(start time.Time) { observe("upsert_statistic", start, err) }(time.Now())

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO sum_statistics (
			stat_time, total_active_jams, total_active_alerts,
			avg_speed_kmh, avg_jam_length, avg_delay, avg_jam_level, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stat_time) DO UPDATE SET
			total_active_jams = EXCLUDED.total_active_jams,
			total_active_alerts = EXCLUDED.total_active_alerts,
			avg_speed_kmh = EXCLUDED.avg_speed_kmh,
			avg_jam_length = EXCLUDED.avg_jam_length,
			avg_delay = EXCLUDED.avg_delay,
			avg_jam_level = EXCLUDED.avg_jam_level,
			computed_at = EXCLUDED.computed_at`,
		s.StatTime.UTC(), s.TotalActiveJams, s.TotalActiveAlerts,
		s.AvgSpeedKMH, s.AvgJamLength, s.AvgDelay, s.AvgJamLevel, s.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert statistic %s: %w", s.StatTime.Format(time.RFC3339), err)
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) (err error) {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer func() { <-t.db.writer }()
	defer func(start time.Time) { observe("commit", start, err) }(time.Now())

	return t.tx.Commit()
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer func() { <-t.db.writer }()

	return t.tx.Rollback()
}

// nullable dereferences an optional column value so the driver binds NULL
// for nil and the plain value otherwise.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
