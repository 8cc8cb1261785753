// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package events

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// RedisSink publishes reports on a Redis pub/sub channel.
type RedisSink struct {
	client  *goredis.Client
	channel string
}

// NewRedisSink creates a sink from a redis:// URL.
func NewRedisSink(url, channel string) (*RedisSink, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if channel == "" {
		return nil, fmt.Errorf("redis channel is required")
	}
	return NewRedisSinkFromClient(goredis.NewClient(opts), channel), nil
}

// NewRedisSinkFromClient wraps an existing client.
func NewRedisSinkFromClient(client *goredis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Publish implements Sink. The partition is carried in the payload.
func (s *RedisSink) Publish(ctx context.Context, m Message) error {
	if err := s.client.Publish(ctx, s.channel, m.Payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ping checks connectivity to the Redis server.
func (s *RedisSink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
