// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewSweeperDefault(t *testing.T) {
	if got := NewSweeper(0).Threshold; got != DefaultStalenessThreshold {
		t.Errorf("Threshold = %v, want %v", got, DefaultStalenessThreshold)
	}
	if got := NewSweeper(time.Minute).Threshold; got != time.Minute {
		t.Errorf("Threshold = %v, want 1m", got)
	}
}

func TestSweeperCutoff(t *testing.T) {
	s := NewSweeper(5 * time.Minute)
	want := testNow.Add(-5 * time.Minute)
	if got := s.Cutoff(testNow); !got.Equal(want) {
		t.Errorf("Cutoff() = %v, want %v", got, want)
	}
}

func TestSweepPassesCutoff(t *testing.T) {
	tx := &recordingTx{deactivated: 3}
	s := NewSweeper(5 * time.Minute)

	n, err := s.Sweep(context.Background(), tx, TableJams, testNow)
	if err != nil || n != 3 {
		t.Fatalf("Sweep() = %d, %v; want 3", n, err)
	}
	if tx.table != TableJams || !tx.cutoff.Equal(testNow.Add(-5*time.Minute)) {
		t.Errorf("Deactivate called with %s %v", tx.table, tx.cutoff)
	}
}

func TestSweepWrapsStoreError(t *testing.T) {
	tx := &recordingTx{err: errors.New("disk full")}
	_, err := NewSweeper(0).Sweep(context.Background(), tx, TableAlerts, testNow)

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want PersistenceError", err)
	}
	if pe.Op != "deactivate" || pe.Table != "alerts" {
		t.Errorf("PersistenceError = %+v", pe)
	}
}
