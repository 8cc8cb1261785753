// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

/*
Package events fans partition reports out to downstream consumers.

After a partition's unit of work commits, the orchestrator hands its
PartitionReport to the Publisher, which serializes it as JSON and sends
it to every configured sink:

  - NATSSink: core NATS subject "<subject>.<partition>" via a watermill
    publisher, guarded by a circuit breaker
  - RedisSink: PUBLISH on a single channel
  - MQTTSink: topic "<topic>/<partition>" at the configured QoS

When the outbox is enabled, a report is written to a badger database
before any sink sees it and is removed only once every sink accepted it.
RetryPending republishes what is left, so delivery is at-least-once:
consumers may see a report twice when one sink failed and the others
did not. Entries that keep failing are discarded after MaxAttempts.

Publish failures never fail the partition; the orchestrator logs them.
*/
package events
