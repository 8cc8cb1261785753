// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/roadwatch/config.yaml",
	"/etc/roadwatch/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

const (
	defaultFeedTimeout   = 30 * time.Second
	defaultFeedRateLimit = 1.0
	defaultDataDir       = "/data"
)

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Feed: SingleFeedConfig{
			Name: "default",
			Store: StoreConfig{
				Driver: "duckdb",
			},
		},
		Ingest: IngestConfig{
			Interval:           2 * time.Minute, // upstream feed refreshes every 2 minutes
			StalenessThreshold: 5 * time.Minute,
			RunOnStart:         true,
			ParallelPartitions: 1,
		},
		DuckDB: DuckDBConfig{
			MaxMemory:       "1GB",
			Threads:         0, // 0 = runtime.NumCPU()
			SpatialOptional: true,
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
		},
		Events: EventsConfig{
			Outbox: OutboxConfig{
				Enabled:       false,
				Path:          defaultDataDir + "/outbox",
				RetryInterval: 30 * time.Second,
				MaxAttempts:   10,
			},
			NATS: NATSConfig{
				URL:     "nats://127.0.0.1:4222",
				Subject: "roadwatch.reports",
			},
			Redis: RedisConfig{
				URL:     "redis://localhost:6379/0",
				Channel: "roadwatch:reports",
			},
			MQTT: MQTTConfig{
				Broker:   "tcp://localhost:1883",
				ClientID: "roadwatch",
				Topic:    "roadwatch/reports",
				QoS:      1,
			},
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file
//  3. Environment Variables: override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.applySingleFeed()
	cfg.applyFeedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applySingleFeed turns the FEED_URL shortcut into a one-partition feed
// when no feeds were configured in a file.
func (c *Config) applySingleFeed() {
	if len(c.Feeds) > 0 || c.Feed.URL == "" {
		return
	}
	name := c.Feed.Name
	if name == "" {
		name = "default"
	}
	c.Feeds = []FeedConfig{{
		Name: name,
		URL:  c.Feed.URL,
		Partitions: []PartitionConfig{{
			Name:   name,
			Filter: FilterConfig{Op: "all"},
			Store:  c.Feed.Store,
		}},
	}}
}

// applyFeedDefaults fills per-feed and per-partition values left empty.
func (c *Config) applyFeedDefaults() {
	for i := range c.Feeds {
		feed := &c.Feeds[i]
		if feed.Timeout == 0 {
			feed.Timeout = defaultFeedTimeout
		}
		if feed.RateLimit == 0 {
			feed.RateLimit = defaultFeedRateLimit
		}
		for j := range feed.Partitions {
			p := &feed.Partitions[j]
			if p.Filter.Op == "" {
				p.Filter.Op = "all"
			}
			if p.Store.Driver == "" {
				p.Store.Driver = "duckdb"
			}
			if p.Store.Driver == "duckdb" && p.Store.Path == "" {
				p.Store.Path = defaultDataDir + "/roadwatch-" + p.Name + ".duckdb"
			}
		}
	}
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Single-feed shortcut
	"feed_url":     "feed.url",
	"feed_name":    "feed.name",
	"store_driver": "feed.store.driver",
	"duckdb_path":  "feed.store.path",
	"postgres_dsn": "feed.store.dsn",

	// Ingest
	"ingest_interval":     "ingest.interval",
	"staleness_threshold": "ingest.staleness_threshold",
	"ingest_run_on_start": "ingest.run_on_start",
	"parallel_partitions": "ingest.parallel_partitions",

	// Statistics
	"stats_backfill_from": "statistics.backfill_from",

	// DuckDB
	"duckdb_max_memory":       "duckdb.max_memory",
	"duckdb_threads":          "duckdb.threads",
	"duckdb_spatial_optional": "duckdb.spatial_optional",

	// Postgres
	"postgres_max_conns": "postgres.max_conns",

	// Events
	"outbox_enabled":        "events.outbox.enabled",
	"outbox_path":           "events.outbox.path",
	"outbox_retry_interval": "events.outbox.retry_interval",
	"outbox_max_attempts":   "events.outbox.max_attempts",
	"nats_enabled":          "events.nats.enabled",
	"nats_url":              "events.nats.url",
	"nats_subject":          "events.nats.subject",
	"redis_enabled":         "events.redis.enabled",
	"redis_url":             "events.redis.url",
	"redis_channel":         "events.redis.channel",
	"mqtt_enabled":          "events.mqtt.enabled",
	"mqtt_broker":           "events.mqtt.broker",
	"mqtt_client_id":        "events.mqtt.client_id",
	"mqtt_topic":            "events.mqtt.topic",
	"mqtt_qos":              "events.mqtt.qos",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return an empty key and are ignored by koanf.
//
// Examples:
//   - FEED_URL -> feed.url
//   - INGEST_INTERVAL -> ingest.interval
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
