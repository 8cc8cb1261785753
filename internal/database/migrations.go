// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/roadwatch/internal/logging"
)

// Migration is a versioned schema change. Migrations are append-only.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         []string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	description VARCHAR,
	applied_at TIMESTAMP NOT NULL DEFAULT now()
);`

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// geometryType is the column type for geometries: GEOMETRY with the spatial
// extension, WKT text without it.
func (db *DB) geometryType() string {
	if db.spatialAvailable {
		return "GEOMETRY"
	}
	return "VARCHAR"
}

// getMigrations returns every migration in order.
func (db *DB) getMigrations() []Migration {
	geom := db.geometryType()
	return []Migration{
		{
			Version:     1,
			Name:        "create_event_tables",
			Description: "alerts, jams, segments and sum_statistics",
			SQL: []string{
				`CREATE TABLE IF NOT EXISTS alerts (
					uuid VARCHAR NOT NULL,
					published_at TIMESTAMP NOT NULL,
					last_updated TIMESTAMP,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					country VARCHAR,
					city VARCHAR,
					type VARCHAR,
					subtype VARCHAR,
					street VARCHAR,
					report_rating INTEGER,
					report_by_municipality_user BOOLEAN DEFAULT FALSE,
					confidence INTEGER,
					reliability INTEGER,
					road_type INTEGER,
					magvar INTEGER,
					report_description VARCHAR,
					location ` + geom + `,
					UNIQUE (uuid, published_at)
				);`,
				`CREATE TABLE IF NOT EXISTS jams (
					uuid VARCHAR NOT NULL,
					published_at TIMESTAMP NOT NULL,
					last_updated TIMESTAMP,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					country VARCHAR,
					city VARCHAR,
					jam_level INTEGER,
					speed_kmh DOUBLE,
					jam_length INTEGER,
					turn_type VARCHAR,
					end_node VARCHAR,
					start_node VARCHAR,
					speed DOUBLE,
					road_type INTEGER,
					delay INTEGER,
					street VARCHAR,
					blocking_alert_uuid VARCHAR,
					jam_line ` + geom + `,
					UNIQUE (uuid, published_at)
				);`,
				`CREATE SEQUENCE IF NOT EXISTS segments_id_seq START 1;`,
				`CREATE TABLE IF NOT EXISTS segments (
					id BIGINT PRIMARY KEY DEFAULT nextval('segments_id_seq'),
					jam_id BIGINT,
					from_node BIGINT,
					to_node BIGINT,
					segment_id BIGINT,
					is_forward BOOLEAN
				);`,
				`CREATE TABLE IF NOT EXISTS sum_statistics (
					stat_time TIMESTAMP PRIMARY KEY,
					total_active_jams BIGINT NOT NULL,
					total_active_alerts BIGINT NOT NULL,
					avg_speed_kmh DOUBLE NOT NULL,
					avg_jam_length DOUBLE NOT NULL,
					avg_delay DOUBLE NOT NULL,
					avg_jam_level DOUBLE NOT NULL,
					computed_at TIMESTAMP NOT NULL
				);`,
			},
		},
		{
			// Only columns that are never updated are indexed: DuckDB rewrites
			// an update of an indexed column as delete plus insert.
			Version:     2,
			Name:        "index_published_at",
			Description: "published_at indexes for hourly aggregation",
			SQL: []string{
				`CREATE INDEX IF NOT EXISTS idx_alerts_published_at ON alerts(published_at);`,
				`CREATE INDEX IF NOT EXISTS idx_jams_published_at ON jams(published_at);`,
			},
		},
	}
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// runVersionedMigrations applies the migrations not yet recorded in
// schema_migrations, each in its own transaction.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	newMigrations := 0
	for _, m := range db.getMigrations() {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return err
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Str("store", db.opts.Name).Int("count", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration v%d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.SQL {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
		m.Version, m.Name, m.Description); err != nil {
		return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
	}
	return tx.Commit()
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
