// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package feed fetches and decodes the upstream traffic feed.

A feed document is a JSON object with two collections:

	{
	  "alerts": [{"uuid": "...", "pubMillis": 1700000000000, "location": {"x": 16.6, "y": 49.2}, ...}],
	  "jams":   [{"uuid": 12345, "line": [{"x": 16.6, "y": 49.2}, ...], "segments": [...], ...}]
	}

Client performs one GET per Fetch, throttled by a token-bucket limiter
(golang.org/x/time/rate). Numeric fields that the upsert engine validates
are kept raw so that a record with a string coordinate still reaches
validation and is counted as skipped rather than lost during decoding.

CircuitBreakerClient wraps any Fetcher with sony/gobreaker so that a feed
that keeps failing is skipped until it recovers.

Every failure is returned as a *FetchError. There are no retries here; the
orchestrator's next cycle is the retry.
*/
package feed
