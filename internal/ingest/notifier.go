// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"context"

	"github.com/tomtom215/roadwatch/internal/models"
)

// Notifier receives a report after a partition's unit of work commits.
// Errors are logged by the orchestrator and never fail the partition.
type Notifier interface {
	Notify(ctx context.Context, report *models.PartitionReport) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, report *models.PartitionReport) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, report *models.PartitionReport) error {
	return f(ctx, report)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *models.PartitionReport) error { return nil }
