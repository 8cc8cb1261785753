// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"errors"
	"fmt"
)

// Record validation causes.
var (
	ErrMissingField    = errors.New("required field missing")
	ErrNotNumeric      = errors.New("value is not a number")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrTimestampRange  = errors.New("timestamp out of range")
)

// ErrUnknownPartition is returned for a partition name that is not configured.
var ErrUnknownPartition = errors.New("unknown partition")

// ErrNotRunning is returned when triggering a cycle on a stopped orchestrator.
var ErrNotRunning = errors.New("orchestrator is not running")

// ValidationError reports a single feed record that cannot be stored.
// The upsert engine skips and counts these; they never abort a batch.
type ValidationError struct {
	Kind   string // "alert" or "jam"
	UUID   string
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	id := e.UUID
	if id == "" {
		id = "<none>"
	}
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s %s: %s: %s", e.Kind, id, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %s: %s: %v", e.Kind, id, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a store failure. It aborts the partition's unit
// of work, whose transaction is rolled back in full.
type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistenceError wraps err unless it already is a PersistenceError.
func persistenceError(op string, table Table, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Table: string(table), Err: err}
}

// ConfigError reports an invalid ingestion setting, such as a backfill
// timestamp that cannot be parsed.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
