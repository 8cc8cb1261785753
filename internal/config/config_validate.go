// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/roadwatch/internal/logging"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateStruct(); err != nil {
		return err
	}

	validators := []func() error{
		c.validateFeeds,
		c.validateIngest,
		c.validateEvents,
		c.validateServer,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// validateStruct runs the struct-tag rules and reports the first failure
// with its config path.
func (c *Config) validateStruct() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("%s failed %q (%s) validation, got %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("%s failed %q validation, got %v", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

// validateFeeds checks feed URLs, partition filters and store targets.
func (c *Config) validateFeeds() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required: set FEED_URL or configure feeds in %s", ConfigPathEnvVar)
	}

	feedNames := make(map[string]struct{}, len(c.Feeds))
	partitionNames := make(map[string]string)
	for i := range c.Feeds {
		feed := &c.Feeds[i]
		if _, dup := feedNames[feed.Name]; dup {
			return fmt.Errorf("feeds[%d]: duplicate feed name %q", i, feed.Name)
		}
		feedNames[feed.Name] = struct{}{}

		if err := validateHTTPURL(feed.URL); err != nil {
			return fmt.Errorf("feeds[%d] (%s): %w", i, feed.Name, err)
		}

		for j := range feed.Partitions {
			p := &feed.Partitions[j]
			if owner, dup := partitionNames[p.Name]; dup {
				return fmt.Errorf("feeds[%d].partitions[%d]: partition name %q already used by feed %q", i, j, p.Name, owner)
			}
			partitionNames[p.Name] = feed.Name

			if err := validateFilter(&p.Filter); err != nil {
				return fmt.Errorf("partition %q: %w", p.Name, err)
			}
			if err := validateStore(&p.Store); err != nil {
				return fmt.Errorf("partition %q: %w", p.Name, err)
			}
		}
	}
	return nil
}

func validateFilter(f *FilterConfig) error {
	switch f.Op {
	case "all":
		return nil
	case "eq", "ne":
		if f.Field == "" {
			return fmt.Errorf("filter op %q requires a field", f.Op)
		}
		if len(f.Values) != 1 {
			return fmt.Errorf("filter op %q requires exactly one value, got %d", f.Op, len(f.Values))
		}
	case "in", "not_in":
		if f.Field == "" {
			return fmt.Errorf("filter op %q requires a field", f.Op)
		}
		if len(f.Values) == 0 {
			return fmt.Errorf("filter op %q requires at least one value", f.Op)
		}
	default:
		return fmt.Errorf("unknown filter op %q", f.Op)
	}
	return nil
}

func validateStore(s *StoreConfig) error {
	switch s.Driver {
	case "duckdb":
		if s.Path == "" {
			return fmt.Errorf("duckdb store requires a path (DUCKDB_PATH)")
		}
	case "postgres":
		if s.DSN == "" {
			return fmt.Errorf("postgres store requires a dsn (POSTGRES_DSN)")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q (STORE_DRIVER must be duckdb, postgres or memory)", s.Driver)
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Interval <= 0 {
		return fmt.Errorf("INGEST_INTERVAL must be positive, got %s", c.Ingest.Interval)
	}
	if c.Ingest.StalenessThreshold <= 0 {
		return fmt.Errorf("STALENESS_THRESHOLD must be positive, got %s", c.Ingest.StalenessThreshold)
	}
	if c.Ingest.StalenessThreshold < c.Ingest.Interval {
		logging.Warn().
			Dur("staleness_threshold", c.Ingest.StalenessThreshold).
			Dur("interval", c.Ingest.Interval).
			Msg("Staleness threshold is shorter than the poll interval; events will flap inactive between cycles")
	}
	if c.Ingest.ParallelPartitions < 1 {
		return fmt.Errorf("PARALLEL_PARTITIONS must be at least 1, got %d", c.Ingest.ParallelPartitions)
	}
	return nil
}

func (c *Config) validateEvents() error {
	e := &c.Events
	if e.NATS.Enabled && e.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	if e.NATS.Enabled && e.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if e.Redis.Enabled {
		if e.Redis.URL == "" || e.Redis.Channel == "" {
			return fmt.Errorf("REDIS_URL and REDIS_CHANNEL are required when REDIS_ENABLED=true")
		}
	}
	if e.MQTT.Enabled {
		if e.MQTT.Broker == "" || e.MQTT.Topic == "" {
			return fmt.Errorf("MQTT_BROKER and MQTT_TOPIC are required when MQTT_ENABLED=true")
		}
		if e.MQTT.QoS < 0 || e.MQTT.QoS > 2 {
			return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", e.MQTT.QoS)
		}
	}
	if e.Outbox.Enabled {
		if e.Outbox.Path == "" {
			return fmt.Errorf("OUTBOX_PATH is required when OUTBOX_ENABLED=true")
		}
		if e.Outbox.RetryInterval <= 0 {
			return fmt.Errorf("OUTBOX_RETRY_INTERVAL must be positive")
		}
		if e.Outbox.MaxAttempts < 1 {
			return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be at least 1")
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is invalid (trace, debug, info, warn, error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// validateHTTPURL checks the feed URL scheme and host.
func validateHTTPURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL host is required")
	}
	return nil
}
