// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Feeds      []FeedConfig     `koanf:"feeds" validate:"dive"`
	Feed       SingleFeedConfig `koanf:"feed"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Statistics StatisticsConfig `koanf:"statistics"`
	DuckDB     DuckDBConfig     `koanf:"duckdb"`
	Postgres   PostgresConfig   `koanf:"postgres"`
	Events     EventsConfig     `koanf:"events"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// FeedConfig describes one upstream feed endpoint and the partitions its
// documents are split into. The feed is fetched once per cycle.
type FeedConfig struct {
	Name       string            `koanf:"name" validate:"required"`
	URL        string            `koanf:"url" validate:"required,url"`
	Timeout    time.Duration     `koanf:"timeout" validate:"gte=0"`
	RateLimit  float64           `koanf:"rate_limit" validate:"gte=0"`
	Partitions []PartitionConfig `koanf:"partitions" validate:"required,min=1,dive"`
}

// PartitionConfig selects a subset of a feed document and names the store
// that receives it.
type PartitionConfig struct {
	Name   string       `koanf:"name" validate:"required"`
	Filter FilterConfig `koanf:"filter"`
	Store  StoreConfig  `koanf:"store"`
}

// FilterConfig is the partition predicate, e.g. city eq Brno. Only
// attributes shared by alerts and jams can be filtered on.
type FilterConfig struct {
	Field  string   `koanf:"field" validate:"omitempty,oneof=city country street"`
	Op     string   `koanf:"op" validate:"omitempty,oneof=eq ne in not_in all"`
	Values []string `koanf:"values"`
}

// StoreConfig selects the persistence backend for a partition.
// Partitions naming the same driver and location share one store.
type StoreConfig struct {
	Driver string `koanf:"driver" validate:"omitempty,oneof=duckdb postgres memory"`
	Path   string `koanf:"path"`
	DSN    string `koanf:"dsn"`
}

// SingleFeedConfig is the environment-only shortcut for a deployment with
// one feed and one unfiltered partition (FEED_URL, FEED_NAME, STORE_DRIVER,
// DUCKDB_PATH, POSTGRES_DSN). It is ignored when feeds are configured.
type SingleFeedConfig struct {
	Name  string      `koanf:"name"`
	URL   string      `koanf:"url"`
	Store StoreConfig `koanf:"store"`
}

// IngestConfig controls the polling loop.
type IngestConfig struct {
	Interval           time.Duration `koanf:"interval"`
	StalenessThreshold time.Duration `koanf:"staleness_threshold"`
	RunOnStart         bool          `koanf:"run_on_start"`
	ParallelPartitions int           `koanf:"parallel_partitions"`
}

// StatisticsConfig controls hourly aggregation.
type StatisticsConfig struct {
	// BackfillFrom is an optional start timestamp (DD.MM.YYYY HH:MM,
	// YYYY-MM-DD HH:MM or RFC 3339, UTC). Empty disables backfill.
	BackfillFrom string `koanf:"backfill_from"`
}

// DuckDBConfig holds DuckDB tuning shared by every DuckDB-backed partition.
type DuckDBConfig struct {
	MaxMemory       string `koanf:"max_memory"`
	Threads         int    `koanf:"threads"`
	SpatialOptional bool   `koanf:"spatial_optional"`
}

// PostgresConfig holds pool settings shared by every Postgres-backed partition.
type PostgresConfig struct {
	MaxConns int32 `koanf:"max_conns"`
}

// EventsConfig configures where partition reports are published after commit.
type EventsConfig struct {
	Outbox OutboxConfig `koanf:"outbox"`
	NATS   NATSConfig   `koanf:"nats"`
	Redis  RedisConfig  `koanf:"redis"`
	MQTT   MQTTConfig   `koanf:"mqtt"`
}

// Enabled reports whether any sink is configured.
func (e *EventsConfig) Enabled() bool {
	return e.NATS.Enabled || e.Redis.Enabled || e.MQTT.Enabled
}

// OutboxConfig configures the durable report outbox.
type OutboxConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Path          string        `koanf:"path"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	MaxAttempts   int           `koanf:"max_attempts"`
}

// NATSConfig configures the NATS sink.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// RedisConfig configures the Redis pub/sub sink.
type RedisConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Channel string `koanf:"channel"`
}

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Broker   string `koanf:"broker"`
	ClientID string `koanf:"client_id"`
	Topic    string `koanf:"topic"`
	QoS      int    `koanf:"qos"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (lowest first).
func Load() (*Config, error) {
	return LoadWithKoanf()
}
