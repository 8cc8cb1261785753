// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package events

import "errors"

var (
	// ErrOutboxClosed is returned by operations on a closed outbox.
	ErrOutboxClosed = errors.New("outbox is closed")

	// ErrEntryNotFound is returned when an outbox entry does not exist.
	ErrEntryNotFound = errors.New("outbox entry not found")

	// ErrSinkClosed is returned when publishing to a closed sink.
	ErrSinkClosed = errors.New("sink is closed")
)
