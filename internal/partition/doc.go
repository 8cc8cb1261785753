// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

// Package partition splits a feed document into named subsets by a string
// attribute predicate (for example city eq Brno and city ne Brno), so that
// each subset can be persisted to its own store independently.
package partition
