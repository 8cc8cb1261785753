// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package ingest implements the ingestion pipeline: canonicalization and
idempotent upsert of feed records, segment extraction, the active/inactive
lifecycle sweep, hourly statistics, and the orchestrator that drives them
on a fixed interval.

# Unit of Work

Every partition of every source is processed in its own transaction, in
this order:

 1. upsert alerts, then sweep the alerts table
 2. upsert jams, then sweep the jams table
 3. append segments extracted from the raw jam batch
 4. compute statistics for the current hour (plus the configured backfill
    in the partition's first successful cycle)
 5. commit, then notify

A failure at any step rolls the whole transaction back. Other partitions
and the next cycle are unaffected.

# Upsert Rule

Alerts and jams are keyed by (uuid, published_at). A new key is inserted
with every field. An existing key only gets last_updated refreshed and
active set back to true; descriptive fields keep their first observed
values. Invalid records produce a *ValidationError and are skipped and
counted, never aborting the batch.

# Lifecycle

	active --(last_updated < now - threshold, swept)--> inactive
	inactive --(observed again, upsert refresh)--> active

# Statistics

An event overlaps the hour [start, start+1h) when published_at <= start+1h
and last_updated is null or >= start. Each hour row holds the overlapping
jam and alert counts and the jam averages of speed, length, delay and
level, with undefined averages stored as zero. Recomputing an hour
overwrites it.

# Scheduling

The polling loop runs on a Clock so tests can drive ticks directly.
TriggerCycle requests an immediate cycle; concurrent requests coalesce.
*/
package ingest
