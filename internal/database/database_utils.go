// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package database

import (
	"context"
	"fmt"
	"time"
)

// ensureContext adds a 30-second timeout when ctx has no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// GetDatabasePath returns the path to the database file.
func (db *DB) GetDatabasePath() string {
	return db.opts.Path
}

// RecordCounts is the number of rows per table.
type RecordCounts struct {
	Alerts       int64 `json:"alerts"`
	ActiveAlerts int64 `json:"active_alerts"`
	Jams         int64 `json:"jams"`
	ActiveJams   int64 `json:"active_jams"`
	Segments     int64 `json:"segments"`
	Statistics   int64 `json:"statistics"`
}

// GetRecordCounts returns row counts for every table.
func (db *DB) GetRecordCounts(ctx context.Context) (RecordCounts, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var c RecordCounts
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM alerts),
			(SELECT COUNT(*) FROM alerts WHERE active),
			(SELECT COUNT(*) FROM jams),
			(SELECT COUNT(*) FROM jams WHERE active),
			(SELECT COUNT(*) FROM segments),
			(SELECT COUNT(*) FROM sum_statistics)`).
		Scan(&c.Alerts, &c.ActiveAlerts, &c.Jams, &c.ActiveJams, &c.Segments, &c.Statistics)
	if err != nil {
		return RecordCounts{}, fmt.Errorf("failed to count records: %w", err)
	}
	return c, nil
}
