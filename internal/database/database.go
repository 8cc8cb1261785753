// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/metrics"
	"github.com/tomtom215/roadwatch/internal/models"
)

const driverName = "duckdb"

// StoreOptions configures one DuckDB database file.
type StoreOptions struct {
	// Name identifies the store in logs and metrics. Defaults to Path.
	Name      string
	Path      string
	MaxMemory string
	Threads   int
	// SpatialOptional allows startup without the spatial extension, in
	// which case geometries are stored as WKT text.
	SpatialOptional bool
	// DisableSpatial skips the spatial extension entirely. Tests use it to
	// avoid extension downloads.
	DisableSpatial bool
}

// DB is a DuckDB-backed ingest.Store.
type DB struct {
	conn             *sql.DB
	opts             StoreOptions
	spatialAvailable bool

	// writer holds a token while a write transaction is open. DuckDB uses
	// optimistic concurrency, so two sweeps over the same table would
	// conflict at commit.
	writer chan struct{}

	closeOnce sync.Once
	closeErr  error
}

var _ ingest.Store = (*DB)(nil)

// New opens the database, loads the spatial extension and applies the schema.
func New(opts StoreOptions) (*DB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if opts.Name == "" {
		opts.Name = opts.Path
	}
	if opts.MaxMemory == "" {
		opts.MaxMemory = "1GB"
	}
	numThreads := opts.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if opts.Path != ":memory:" {
		dbDir := filepath.Dir(opts.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Extensions are loaded explicitly by loadSpatial with a hard timeout.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		opts.Path, numThreads, opts.MaxMemory)

	conn, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:   conn,
		opts:   opts,
		writer: make(chan struct{}, 1),
	}

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database %s: %w", opts.Name, err)
	}

	logging.Info().
		Str("store", opts.Name).
		Str("path", opts.Path).
		Bool("spatial", db.spatialAvailable).
		Msg("DuckDB store ready")
	return db, nil
}

// initialize loads extensions, applies migrations and checkpoints so the
// WAL holds no schema statements on the next start.
func (db *DB) initialize() error {
	if err := db.loadSpatial(); err != nil {
		return err
	}
	if err := db.runVersionedMigrations(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Str("store", db.opts.Name).Msg("Failed to checkpoint after schema initialization")
	}
	return nil
}

// Name returns the store name.
func (db *DB) Name() string {
	return db.opts.Name
}

// IsSpatialAvailable reports whether geometries are stored as GEOMETRY.
func (db *DB) IsSpatialAvailable() bool {
	return db.spatialAvailable
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Begin waits for any open write transaction and starts a new one.
func (db *DB) Begin(ctx context.Context) (ingest.Tx, error) {
	select {
	case db.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	observe("begin", start, err)
	if err != nil {
		<-db.writer
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &tx{db: db, tx: sqlTx}, nil
}

// ListStatistics returns statistic rows with from <= stat_time < to, oldest first.
func (db *DB) ListStatistics(ctx context.Context, from, to time.Time) (stats []models.HourlyStatistic, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("list_statistics", start, err) }(time.Now())

	rows, err := db.conn.QueryContext(ctx, `
		SELECT stat_time, total_active_jams, total_active_alerts,
		       avg_speed_kmh, avg_jam_length, avg_delay, avg_jam_level, computed_at
		FROM sum_statistics
		WHERE stat_time >= ? AND stat_time < ?
		ORDER BY stat_time`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.HourlyStatistic
		if err := rows.Scan(&s.StatTime, &s.TotalActiveJams, &s.TotalActiveAlerts,
			&s.AvgSpeedKMH, &s.AvgJamLength, &s.AvgDelay, &s.AvgJamLevel, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan statistic: %w", err)
		}
		s.StatTime = s.StatTime.UTC()
		s.ComputedAt = s.ComputedAt.UTC()
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints the WAL into the database file and closes the connection.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Str("store", db.opts.Name).Msg("Failed to checkpoint database before close")
		}
		cancel()
		db.closeErr = db.conn.Close()
	})
	return db.closeErr
}

func observe(operation string, start time.Time, err error) {
	metrics.RecordStoreQuery(driverName, operation, time.Since(start), err)
}
