// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/roadwatch/internal/config"
	"github.com/tomtom215/roadwatch/internal/database"
	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/memstore"
	"github.com/tomtom215/roadwatch/internal/postgres"
)

// Driver names accepted in StoreConfig.Driver.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open creates a store for one partition. The name is used in logs and
// metrics.
func Open(ctx context.Context, name string, sc config.StoreConfig, duck config.DuckDBConfig, pg config.PostgresConfig) (ingest.Store, error) {
	switch sc.Driver {
	case DriverDuckDB, "":
		db, err := database.New(database.StoreOptions{
			Name:            name,
			Path:            sc.Path,
			MaxMemory:       duck.MaxMemory,
			Threads:         duck.Threads,
			SpatialOptional: duck.SpatialOptional,
		})
		if err != nil {
			return nil, fmt.Errorf("open duckdb store %s: %w", name, err)
		}
		return db, nil

	case DriverPostgres:
		store, err := postgres.New(ctx, name, sc.DSN, pg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres store %s: %w", name, err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres store %s: %w", name, err)
		}
		return store, nil

	case DriverMemory:
		return memstore.New(name), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

// Registry opens each distinct store once.
type Registry struct {
	duck config.DuckDBConfig
	pg   config.PostgresConfig

	mu     sync.Mutex
	stores map[string]ingest.Store
	open   func(ctx context.Context, name string, sc config.StoreConfig) (ingest.Store, error)
}

// NewRegistry creates an empty registry using the engine settings for
// every store it opens.
func NewRegistry(duck config.DuckDBConfig, pg config.PostgresConfig) *Registry {
	r := &Registry{
		duck:   duck,
		pg:     pg,
		stores: make(map[string]ingest.Store),
	}
	r.open = func(ctx context.Context, name string, sc config.StoreConfig) (ingest.Store, error) {
		return Open(ctx, name, sc, r.duck, r.pg)
	}
	return r
}

// key identifies a physical store. Memory stores without a path are never
// shared, since there is nothing to identify them by.
func key(partition string, sc config.StoreConfig) string {
	switch sc.Driver {
	case DriverPostgres:
		return DriverPostgres + ":" + sc.DSN
	case DriverMemory:
		if sc.Path == "" {
			return DriverMemory + ":partition:" + partition
		}
		return DriverMemory + ":" + sc.Path
	default:
		return DriverDuckDB + ":" + sc.Path
	}
}

// Get returns the store for a partition, opening it on first use.
func (r *Registry) Get(ctx context.Context, partition string, sc config.StoreConfig) (ingest.Store, error) {
	k := key(partition, sc)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[k]; ok {
		logging.Debug().Str("partition", partition).Str("store", s.Name()).Msg("Reusing shared store")
		return s, nil
	}

	s, err := r.open(ctx, partition, sc)
	if err != nil {
		return nil, err
	}
	r.stores[k] = s
	logging.Info().Str("partition", partition).Str("driver", driverName(sc)).Str("store", s.Name()).Msg("Store opened")
	return s, nil
}

// Len returns the number of open stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// CloseAll closes every store and empties the registry.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.stores))
	for k := range r.stores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		s := r.stores[k]
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %s: %w", s.Name(), err))
		}
		delete(r.stores, k)
	}
	return errors.Join(errs...)
}

func driverName(sc config.StoreConfig) string {
	if sc.Driver == "" {
		return DriverDuckDB
	}
	return sc.Driver
}
