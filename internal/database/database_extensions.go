// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tomtom215/roadwatch/internal/logging"
)

// extensionTimeout bounds every extension statement. CGO calls ignore
// context cancellation, so the bound is enforced with a goroutine and select.
// Override with DUCKDB_EXTENSION_TIMEOUT (e.g. "30s", "1m").
var extensionTimeout = getExtensionTimeout()

// duckdbVersion is the DuckDB version used for extension paths. It must
// match the duckdb-go bindings in go.mod.
const duckdbVersion = "v1.4.3"

type extensionRetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BackoffMult float64
}

var defaultRetryConfig = extensionRetryConfig{
	MaxRetries:  3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	BackoffMult: 2.0,
}

func getExtensionTimeout() time.Duration {
	if s := os.Getenv("DUCKDB_EXTENSION_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// isExtensionInstalledLocally checks ~/.duckdb/extensions/{version}/{platform}
// so a pre-installed extension is loaded without touching the network.
func isExtensionInstalledLocally(name string) bool {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	platform := runtime.GOOS + "_" + runtime.GOARCH
	_, err = os.Stat(filepath.Join(homeDir, ".duckdb", "extensions", duckdbVersion, platform, name+".duckdb_extension"))
	return err == nil
}

// loadSpatial installs and loads the spatial extension. When it is optional
// and unavailable, the store falls back to WKT text columns.
func (db *DB) loadSpatial() error {
	if db.opts.DisableSpatial {
		db.spatialAvailable = false
		return nil
	}

	err := db.installAndLoad("spatial")
	if err == nil {
		if _, err = db.queryRowWithHardTimeout("SELECT ST_AsText(ST_Point(0, 0))"); err == nil {
			db.spatialAvailable = true
			return nil
		}
	}

	if db.opts.SpatialOptional {
		logging.Warn().Err(err).Str("store", db.opts.Name).Msg("Spatial extension unavailable; storing geometries as WKT text")
		db.spatialAvailable = false
		return nil
	}
	return fmt.Errorf("spatial extension unavailable: %w", err)
}

// installAndLoad follows INSTALL, LOAD, FORCE INSTALL, LOAD.
func (db *DB) installAndLoad(name string) error {
	if isExtensionInstalledLocally(name) {
		if err := db.execWithHardTimeout("LOAD " + name); err == nil {
			return nil
		}
	}

	installErr := db.execWithRetry("INSTALL "+name, defaultRetryConfig)
	if installErr == nil {
		return db.execWithHardTimeout("LOAD " + name)
	}
	if loadErr := db.execWithHardTimeout("LOAD " + name); loadErr == nil {
		return nil
	}
	if err := db.execWithRetry("FORCE INSTALL "+name, defaultRetryConfig); err != nil {
		return fmt.Errorf("install %s: %w", name, err)
	}
	return db.execWithHardTimeout("LOAD " + name)
}

func (db *DB) execWithHardTimeout(query string) error {
	resultCh := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), extensionTimeout)
	defer cancel()

	go func() {
		_, err := db.conn.ExecContext(ctx, query)
		resultCh <- err
	}()

	select {
	case err := <-resultCh:
		return err
	case <-time.After(extensionTimeout):
		return fmt.Errorf("operation timed out after %v", extensionTimeout)
	}
}

func (db *DB) queryRowWithHardTimeout(query string) (interface{}, error) {
	type result struct {
		value interface{}
		err   error
	}
	resultCh := make(chan result, 1)
	ctx, cancel := context.WithTimeout(context.Background(), extensionTimeout)
	defer cancel()

	go func() {
		var v interface{}
		err := db.conn.QueryRowContext(ctx, query).Scan(&v)
		resultCh <- result{value: v, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.value, r.err
	case <-time.After(extensionTimeout):
		return nil, fmt.Errorf("query timed out after %v", extensionTimeout)
	}
}

// execWithRetry retries transient network failures with exponential backoff.
func (db *DB) execWithRetry(query string, config extensionRetryConfig) error {
	var lastErr error
	delay := config.BaseDelay

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug().Int("attempt", attempt).Dur("delay", delay).Str("query", query).Msg("Retrying extension operation")
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * config.BackoffMult)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		err := db.execWithHardTimeout(query)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		logging.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", config.MaxRetries+1).Msg("Extension operation failed, will retry")
	}
	return fmt.Errorf("extension operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	s := err.Error()
	return strings.Contains(s, "timed out") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "temporary failure")
}
