// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package models defines data structures for the Roadwatch application.

The package holds both sides of the ingestion pipeline: the raw records as
they arrive in the upstream traffic feed, and the canonical rows written to
the persistent stores.

Model Categories:

1. Feed Models (raw, as decoded from the upstream JSON document):
  - FeedDocument: top-level document with alerts and jams
  - FeedAlert: driver-reported point event
  - FeedJam: congestion event with path geometry and optional segments
  - FeedPoint, FeedSegment, FeedLocation

Numeric fields whose type must be validated record by record (coordinates
and publish timestamps) are kept as json.RawMessage so that a single bad
record never fails the decoding of the whole document.

2. Canonical Models (persisted):
  - Alert: keyed by (UUID, PublishedAt)
  - Jam: keyed by (UUID, PublishedAt), carries a LineString geometry
  - Segment: append-only directed edge derived from a jam
  - HourlyStatistic: keyed by StatTime (floor of a UTC hour)

3. Geometry:
  - Point and LineString in WGS84 (EPSG:4326) with WKT rendering

4. Reporting:
  - PartitionReport: outcome of one partition's unit of work, published to
    event sinks after commit
*/
package models
