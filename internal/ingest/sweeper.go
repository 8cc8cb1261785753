// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"context"
	"time"
)

// DefaultStalenessThreshold is how long an event stays active without a refresh.
const DefaultStalenessThreshold = 5 * time.Minute

// Sweeper marks events inactive once they go stale.
//
// active -> inactive fires when last_updated < now - Threshold. The reverse
// transition only happens through an upsert refresh. Sweeping twice with no
// upserts in between changes nothing the second time.
type Sweeper struct {
	Threshold time.Duration
}

// NewSweeper creates a sweeper. A non-positive threshold uses the default.
func NewSweeper(threshold time.Duration) *Sweeper {
	if threshold <= 0 {
		threshold = DefaultStalenessThreshold
	}
	return &Sweeper{Threshold: threshold}
}

// Cutoff returns the last_updated boundary below which rows are stale.
func (s *Sweeper) Cutoff(now time.Time) time.Time {
	return now.UTC().Add(-s.Threshold)
}

// Sweep deactivates stale rows of table and returns how many changed.
func (s *Sweeper) Sweep(ctx context.Context, tx Tx, table Table, now time.Time) (int64, error) {
	n, err := tx.Deactivate(ctx, table, s.Cutoff(now))
	if err != nil {
		return 0, persistenceError("deactivate", table, err)
	}
	return n, nil
}
