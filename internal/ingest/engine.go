// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"context"
	"time"

	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/models"
)

// BatchResult summarizes one upsert batch.
type BatchResult = models.BatchCounts

// Engine applies the idempotent upsert to feed batches.
type Engine struct {
	sweeper *Sweeper
}

// NewEngine creates an upsert engine that sweeps with sweeper after each batch.
func NewEngine(sweeper *Sweeper) *Engine {
	if sweeper == nil {
		sweeper = NewSweeper(DefaultStalenessThreshold)
	}
	return &Engine{sweeper: sweeper}
}

// UpsertAlerts upserts every valid alert, skipping invalid ones, then
// sweeps the alerts table. A store failure aborts with a PersistenceError.
func (e *Engine) UpsertAlerts(ctx context.Context, tx Tx, alerts []models.FeedAlert, now time.Time) (BatchResult, error) {
	var res BatchResult
	logger := logging.Ctx(ctx)

	for i := range alerts {
		row, err := CanonicalAlert(&alerts[i], now)
		if err != nil {
			res.Skipped++
			logger.Debug().Err(err).Str("uuid", alerts[i].UUID).Msg("Skipping invalid alert")
			continue
		}

		outcome, err := tx.UpsertAlert(ctx, row)
		if err != nil {
			return res, persistenceError("upsert", TableAlerts, err)
		}
		countOutcome(&res, outcome)
	}

	n, err := e.sweeper.Sweep(ctx, tx, TableAlerts, now)
	if err != nil {
		return res, err
	}
	res.Deactivated = n
	return res, nil
}

// UpsertJams upserts every valid jam, skipping invalid ones, then sweeps
// the jams table. A store failure aborts with a PersistenceError.
func (e *Engine) UpsertJams(ctx context.Context, tx Tx, jams []models.FeedJam, now time.Time) (BatchResult, error) {
	var res BatchResult
	logger := logging.Ctx(ctx)

	for i := range jams {
		row, err := CanonicalJam(&jams[i], now)
		if err != nil {
			res.Skipped++
			logger.Debug().Err(err).Str("uuid", jams[i].UUID.String()).Msg("Skipping invalid jam")
			continue
		}

		outcome, err := tx.UpsertJam(ctx, row)
		if err != nil {
			return res, persistenceError("upsert", TableJams, err)
		}
		countOutcome(&res, outcome)
	}

	n, err := e.sweeper.Sweep(ctx, tx, TableJams, now)
	if err != nil {
		return res, err
	}
	res.Deactivated = n
	return res, nil
}

func countOutcome(res *BatchResult, outcome UpsertOutcome) {
	if outcome == Refreshed {
		res.Refreshed++
		return
	}
	res.Inserted++
}
