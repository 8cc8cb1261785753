// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package services

import (
	"context"
	"time"

	"github.com/tomtom215/roadwatch/internal/events"
	"github.com/tomtom215/roadwatch/internal/logging"
)

// DefaultOutboxRetryInterval is used when the configured interval is zero.
const DefaultOutboxRetryInterval = 30 * time.Second

// OutboxRetrier redelivers pending outbox entries.
type OutboxRetrier interface {
	RetryPending(ctx context.Context) (events.RetryResult, error)
}

// OutboxRetryService periodically retries undelivered partition reports.
type OutboxRetryService struct {
	retrier  OutboxRetrier
	interval time.Duration
	name     string
}

// NewOutboxRetryService creates the retry loop.
func NewOutboxRetryService(retrier OutboxRetrier, interval time.Duration) *OutboxRetryService {
	if interval <= 0 {
		interval = DefaultOutboxRetryInterval
	}
	return &OutboxRetryService{retrier: retrier, interval: interval, name: "outbox-retry"}
}

// Serve runs retry passes until ctx is canceled. A failed pass is logged
// and the loop continues; entries stay in the outbox.
func (s *OutboxRetryService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.retryOnce(ctx)
		}
	}
}

func (s *OutboxRetryService) retryOnce(ctx context.Context) {
	result, err := s.retrier.RetryPending(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Outbox retry pass failed")
		return
	}
	if result.Delivered+result.Failed+result.Discarded == 0 {
		return
	}
	logging.Ctx(ctx).Info().
		Int("delivered", result.Delivered).
		Int("failed", result.Failed).
		Int("discarded", result.Discarded).
		Msg("Outbox retry pass completed")
}

func (s *OutboxRetryService) String() string {
	return s.name
}
