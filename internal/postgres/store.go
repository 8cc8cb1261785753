// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/metrics"
	"github.com/tomtom215/roadwatch/internal/models"
)

const driverName = "postgres"

// Store is a PostGIS-backed ingest.Store.
type Store struct {
	name   string
	pool   *pgxpool.Pool
	writer chan struct{}
}

var _ ingest.Store = (*Store)(nil)

// New connects to dsn and verifies the connection. maxConns <= 0 keeps the
// pgxpool default.
func New(ctx context.Context, name, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if name == "" {
		name = cfg.ConnConfig.Host + "/" + cfg.ConnConfig.Database
	}
	logging.Info().Str("store", name).Int32("max_conns", cfg.MaxConns).Msg("Postgres store connected")
	return &Store{name: name, pool: pool, writer: make(chan struct{}, 1)}, nil
}

// Migrate runs the schema DDL, including CREATE EXTENSION postgis.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Begin waits for this store's previous write transaction and starts a new one.
func (s *Store) Begin(ctx context.Context) (ingest.Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()
	pgTx, err := s.pool.Begin(ctx)
	observe("begin", start, err)
	if err != nil {
		<-s.writer
		return nil, fmt.Errorf("postgres begin: %w", err)
	}
	return &tx{store: s, tx: pgTx}, nil
}

// ListStatistics returns statistic rows with from <= stat_time < to, oldest first.
func (s *Store) ListStatistics(ctx context.Context, from, to time.Time) (stats []models.HourlyStatistic, err error) {
	defer func(start time.Time) { observe("list_statistics", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT stat_time, total_active_jams, total_active_alerts,
		       avg_speed_kmh, avg_jam_length, avg_delay, avg_jam_level, computed_at
		FROM sum_statistics
		WHERE stat_time >= $1 AND stat_time < $2
		ORDER BY stat_time`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st models.HourlyStatistic
		if err := rows.Scan(&st.StatTime, &st.TotalActiveJams, &st.TotalActiveAlerts,
			&st.AvgSpeedKMH, &st.AvgJamLength, &st.AvgDelay, &st.AvgJamLevel, &st.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan statistic: %w", err)
		}
		st.StatTime = st.StatTime.UTC()
		st.ComputedAt = st.ComputedAt.UTC()
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Ping verifies the pool can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func observe(operation string, start time.Time, err error) {
	metrics.RecordStoreQuery(driverName, operation, time.Since(start), err)
}
