// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/models"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("postgres: transaction already committed or rolled back")

type tx struct {
	store *Store
	tx    pgx.Tx
	done  bool
}

// UpsertAlert inserts the alert or, for an existing (uuid, published_at),
// only advances last_updated and reactivates it. xmax = 0 identifies a
// freshly inserted tuple.
func (t *tx) UpsertAlert(ctx context.Context, a *models.Alert) (outcome ingest.UpsertOutcome, err error) {
	if t.done {
		return 0, ErrTxDone
	}
	defer func(start time.Time) { observe("upsert_alert", start, err) }(time.Now())

	var inserted bool
	err = t.tx.QueryRow(ctx, `
		INSERT INTO alerts (
			uuid, published_at, last_updated, active, country, city, type, subtype,
			street, report_rating, report_by_municipality_user, confidence,
			reliability, road_type, magvar, report_description, location
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			ST_GeomFromText($17, 4326))
		ON CONFLICT (uuid, published_at) DO UPDATE SET
			last_updated = GREATEST(alerts.last_updated, EXCLUDED.last_updated),
			active       = TRUE
		RETURNING (xmax = 0)`,
		a.UUID, a.PublishedAt.UTC(), a.LastUpdated.UTC(), a.Active, a.Country, a.City, a.Type, a.Subtype,
		a.Street, a.ReportRating, a.ReportByMunicipalityUser, a.Confidence,
		a.Reliability, a.RoadType, a.Magvar, a.ReportDescription, a.Location.WKT()).Scan(&inserted)
	if err != nil {
		return 0, fmt.Errorf("upsert alert %s: %w", a.UUID, err)
	}
	return outcomeOf(inserted), nil
}

func (t *tx) UpsertJam(ctx context.Context, j *models.Jam) (outcome ingest.UpsertOutcome, err error) {
	if t.done {
		return 0, ErrTxDone
	}
	defer func(start time.Time) { observe("upsert_jam", start, err) }(time.Now())

	var inserted bool
	err = t.tx.QueryRow(ctx, `
		INSERT INTO jams (
			uuid, published_at, last_updated, active, country, city, jam_level,
			speed_kmh, jam_length, turn_type, end_node, start_node, speed,
			road_type, delay, street, blocking_alert_uuid, jam_line
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			ST_GeomFromText($18, 4326))
		ON CONFLICT (uuid, published_at) DO UPDATE SET
			last_updated = GREATEST(jams.last_updated, EXCLUDED.last_updated),
			active       = TRUE
		RETURNING (xmax = 0)`,
		j.UUID, j.PublishedAt.UTC(), j.LastUpdated.UTC(), j.Active, j.Country, j.City, j.JamLevel,
		j.SpeedKMH, j.JamLength, j.TurnType, j.EndNode, j.StartNode, j.Speed,
		j.RoadType, j.Delay, j.Street, j.BlockingAlertUUID, j.Line.WKT()).Scan(&inserted)
	if err != nil {
		return 0, fmt.Errorf("upsert jam %s: %w", j.UUID, err)
	}
	return outcomeOf(inserted), nil
}

func outcomeOf(inserted bool) ingest.UpsertOutcome {
	if inserted {
		return ingest.Inserted
	}
	return ingest.Refreshed
}

// InsertSegments appends rows with COPY.
func (t *tx) InsertSegments(ctx context.Context, segments []models.Segment) (written int, err error) {
	if t.done {
		return 0, ErrTxDone
	}
	if len(segments) == 0 {
		return 0, nil
	}
	defer func(start time.Time) { observe("insert_segments", start, err) }(time.Now())

	n, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"segments"},
		[]string{"jam_id", "from_node", "to_node", "segment_id", "is_forward"},
		pgx.CopyFromSlice(len(segments), func(i int) ([]any, error) {
			s := segments[i]
			return []any{s.JamID, s.FromNode, s.ToNode, s.SegmentID, s.IsForward}, nil
		}))
	if err != nil {
		return int(n), fmt.Errorf("copy segments: %w", err)
	}
	return int(n), nil
}

func (t *tx) Deactivate(ctx context.Context, table ingest.Table, cutoff time.Time) (n int64, err error) {
	if t.done {
		return 0, ErrTxDone
	}
	if table != ingest.TableAlerts && table != ingest.TableJams {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	defer func(start time.Time) { observe("deactivate", start, err) }(time.Now())

	tag, err := t.tx.Exec(ctx,
		`UPDATE `+pgx.Identifier{string(table)}.Sanitize()+` SET active = FALSE WHERE active AND last_updated < $1`,
		cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *tx) AggregateHour(ctx context.Context, start time.Time) (agg ingest.HourAggregate, err error) {
	if t.done {
		return agg, ErrTxDone
	}
	defer func(begin time.Time) { observe("aggregate_hour", begin, err) }(time.Now())

	start = start.UTC()
	end := start.Add(time.Hour)

	err = t.tx.QueryRow(ctx, `
		SELECT COUNT(*),
		       AVG(speed_kmh)::float8, AVG(jam_length)::float8,
		       AVG(delay)::float8, AVG(jam_level)::float8
		FROM jams
		WHERE published_at <= $1 AND (last_updated IS NULL OR last_updated >= $2)`,
		end, start).Scan(&agg.ActiveJams, &agg.AvgSpeedKMH, &agg.AvgJamLength, &agg.AvgDelay, &agg.AvgJamLevel)
	if err != nil {
		return agg, fmt.Errorf("aggregate jams: %w", err)
	}

	err = t.tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM alerts
		WHERE published_at <= $1 AND (last_updated IS NULL OR last_updated >= $2)`,
		end, start).Scan(&agg.ActiveAlerts)
	if err != nil {
		return agg, fmt.Errorf("aggregate alerts: %w", err)
	}
	return agg, nil
}

func (t *tx) UpsertStatistic(ctx context.Context, s *models.HourlyStatistic) (err error) {
	if t.done {
		return ErrTxDone
	}
	defer func(start time.Time) { observe("upsert_statistic", start, err) }(time.Now())

	_, err = t.tx.Exec(ctx, `
		INSERT INTO sum_statistics (
			stat_time, total_active_jams, total_active_alerts,
			avg_speed_kmh, avg_jam_length, avg_delay, avg_jam_level, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stat_time) DO UPDATE SET
			total_active_jams   = EXCLUDED.total_active_jams,
			total_active_alerts = EXCLUDED.total_active_alerts,
			avg_speed_kmh       = EXCLUDED.avg_speed_kmh,
			avg_jam_length      = EXCLUDED.avg_jam_length,
			avg_delay           = EXCLUDED.avg_delay,
			avg_jam_level       = EXCLUDED.avg_jam_level,
			computed_at         = EXCLUDED.computed_at`,
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
	defer func() { <-t.store.writer }()
	defer func(start time.Time) { observe("commit", start, err) }(time.Now())

	return t.tx.Commit(ctx)
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer func() { <-t.store.writer }()

	return t.tx.Rollback(ctx)
}
