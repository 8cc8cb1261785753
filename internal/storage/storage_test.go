// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tomtom215/roadwatch/internal/config"
	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/memstore"
)

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), "brno", config.StoreConfig{Driver: DriverMemory}, config.DuckDBConfig{}, config.PostgresConfig{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if _, ok := store.(*memstore.Store); !ok {
		t.Errorf("Open() returned %T, want *memstore.Store", store)
	}
	if store.Name() != "brno" {
		t.Errorf("Name() = %q, want brno", store.Name())
	}
}

func TestOpenDuckDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brno.duckdb")
	store, err := Open(context.Background(), "brno",
		config.StoreConfig{Driver: DriverDuckDB, Path: path},
		config.DuckDBConfig{MaxMemory: "256MB", Threads: 1, SpatialOptional: true},
		config.PostgresConfig{})
	if err != nil {
		t.Skipf("DuckDB not available: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "x", config.StoreConfig{Driver: "sqlite"}, config.DuckDBConfig{}, config.PostgresConfig{})
	if err == nil {
		t.Fatal("Open() expected error for unknown driver")
	}
}

func TestRegistrySharesStores(t *testing.T) {
	reg := NewRegistry(config.DuckDBConfig{}, config.PostgresConfig{})
	opened := 0
	reg.open = func(_ context.Context, name string, _ config.StoreConfig) (ingest.Store, error) {
		opened++
		return memstore.New(name), nil
	}
	ctx := context.Background()

	shared := config.StoreConfig{Driver: DriverDuckDB, Path: "/data/jmk.duckdb"}
	a, err := reg.Get(ctx, "brno", shared)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	b, err := reg.Get(ctx, "jmk", shared)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if a != b {
		t.Error("partitions naming the same path should share a store")
	}

	if _, err := reg.Get(ctx, "most", config.StoreConfig{Driver: DriverPostgres, DSN: "postgres://db/most"}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Memory stores without a path are per partition.
	m1, _ := reg.Get(ctx, "m1", config.StoreConfig{Driver: DriverMemory})
	m2, _ := reg.Get(ctx, "m2", config.StoreConfig{Driver: DriverMemory})
	if m1 == m2 {
		t.Error("unnamed memory stores should not be shared")
	}

	if opened != 4 {
		t.Errorf("opened = %d, want 4", opened)
	}
	if reg.Len() != 4 {
		t.Errorf("Len() = %d, want 4", reg.Len())
	}

	if err := reg.CloseAll(); err != nil {
		t.Fatalf("CloseAll() error = %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() after CloseAll = %d, want 0", reg.Len())
	}
	if err := a.Ping(ctx); !errors.Is(err, memstore.ErrClosed) {
		t.Errorf("Ping() after CloseAll error = %v, want ErrClosed", err)
	}
}

func TestRegistryOpenError(t *testing.T) {
	reg := NewRegistry(config.DuckDBConfig{}, config.PostgresConfig{})
	boom := errors.New("boom")
	reg.open = func(context.Context, string, config.StoreConfig) (ingest.Store, error) {
		return nil, boom
	}

	if _, err := reg.Get(context.Background(), "brno", config.StoreConfig{Driver: DriverMemory}); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want boom", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed open", reg.Len())
	}
}
