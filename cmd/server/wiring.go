// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/roadwatch/internal/config"
	"github.com/tomtom215/roadwatch/internal/events"
	"github.com/tomtom215/roadwatch/internal/feed"
	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/partition"
)

// storeOpener is satisfied by *storage.Registry.
type storeOpener interface {
	Get(ctx context.Context, partition string, sc config.StoreConfig) (ingest.Store, error)
}

// buildSources creates one source per configured feed with a target per
// partition. Stores are opened (and migrated) here so a bad DSN fails
// startup instead of the first cycle.
func buildSources(ctx context.Context, cfg *config.Config, stores storeOpener) ([]*ingest.Source, error) {
	sources := make([]*ingest.Source, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		client := feed.NewClient(feed.Config{
			Name:      fc.Name,
			URL:       fc.URL,
			Timeout:   fc.Timeout,
			RateLimit: fc.RateLimit,
		})
		src := &ingest.Source{
			Fetcher: feed.NewCircuitBreakerClient(client, feed.DefaultBreakerSettings()),
		}

		for _, pc := range fc.Partitions {
			p, err := partition.New(fc.Name, pc)
			if err != nil {
				return nil, err
			}
			store, err := stores.Get(ctx, pc.Name, pc.Store)
			if err != nil {
				return nil, fmt.Errorf("open store for partition %s: %w", pc.Name, err)
			}
			src.Targets = append(src.Targets, &ingest.Target{Partition: p, Store: store})
			logging.Debug().
				Str("feed", fc.Name).
				Str("partition", pc.Name).
				Str("filter", p.Describe()).
				Str("driver", pc.Store.Driver).
				Msg("Partition configured")
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// backfillStart parses the configured backfill start. An invalid value
// disables the startup backfill and is logged; ingestion still runs.
func backfillStart(s string) *time.Time {
	from, err := ingest.ParseBackfillStart(s)
	if err != nil {
		logging.Error().Err(err).Msg("Ignoring invalid backfill start; startup backfill disabled")
		return nil
	}
	if from != nil {
		logging.Info().Time("from", *from).Msg("Startup backfill configured")
	}
	return from
}

// buildPublisher opens every enabled sink and the outbox. A publisher with
// no sinks is valid; Notify is then a no-op.
func buildPublisher(cfg config.EventsConfig) (*events.Publisher, error) {
	var sinks []events.Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if cfg.NATS.Enabled {
		s, err := events.NewNATSSink(events.NATSSinkConfig{
			URL:           cfg.NATS.URL,
			Subject:       cfg.NATS.Subject,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		}, logging.NewWatermillLogger())
		if err != nil {
			return nil, fmt.Errorf("nats sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	if cfg.Redis.Enabled {
		s, err := events.NewRedisSink(cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("redis sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			closeAll()
			return nil, fmt.Errorf("mqtt sink: qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
		}
		s, err := events.NewMQTTSink(events.MQTTSinkConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("mqtt sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	var outbox *events.Outbox
	if cfg.Outbox.Enabled && len(sinks) > 0 {
		var err error
		outbox, err = events.OpenOutbox(events.OutboxOptions{Path: cfg.Outbox.Path, SyncWrites: true})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open outbox: %w", err)
		}
	}

	return events.NewPublisher(events.PublisherConfig{
		Sinks:       sinks,
		Outbox:      outbox,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	}), nil
}
