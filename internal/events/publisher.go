// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/metrics"
	"github.com/tomtom215/roadwatch/internal/models"
)

// DefaultMaxAttempts is used when PublisherConfig.MaxAttempts is zero.
const DefaultMaxAttempts = 10

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Sinks []Sink
	// Outbox is optional. Without it a failed publish is lost.
	Outbox *Outbox
	// MaxAttempts is how many failed deliveries an outbox entry survives.
	MaxAttempts int
}

// RetryResult summarizes one RetryPending pass.
type RetryResult struct {
	Delivered int
	Failed    int
	Discarded int
}

// Publisher sends partition reports to every sink.
type Publisher struct {
	sinks       []Sink
	outbox      *Outbox
	maxAttempts int

	// retryMu keeps two retry passes from republishing the same entries.
	retryMu sync.Mutex
}

var _ ingest.Notifier = (*Publisher)(nil)

// NewPublisher creates a publisher.
func NewPublisher(cfg PublisherConfig) *Publisher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Publisher{
		sinks:       cfg.Sinks,
		outbox:      cfg.Outbox,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Sinks returns the configured sink names.
func (p *Publisher) Sinks() []string {
	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	return names
}

// HasOutbox reports whether failed reports are kept for retry.
func (p *Publisher) HasOutbox() bool {
	return p.outbox != nil
}

// Notify implements ingest.Notifier.
func (p *Publisher) Notify(ctx context.Context, report *models.PartitionReport) error {
	if len(p.sinks) == 0 {
		return nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	msg := Message{ID: report.ID, Partition: report.Partition, Payload: payload}

	if p.outbox == nil {
		return p.publishAll(ctx, msg)
	}

	entryID, err := p.outbox.Write(ctx, report.Partition, payload)
	if err != nil {
		// Still deliver; only durability is lost.
		logging.Warn().Err(err).Str("partition", report.Partition).Msg("Outbox write failed, publishing without persistence")
		return errors.Join(fmt.Errorf("outbox write: %w", err), p.publishAll(ctx, msg))
	}

	if pubErr := p.publishAll(ctx, msg); pubErr != nil {
		if _, err := p.outbox.RecordAttempt(ctx, entryID, pubErr.Error()); err != nil {
			logging.Warn().Err(err).Str("entry_id", entryID).Msg("Failed to record outbox attempt")
		}
		return pubErr
	}

	if err := p.outbox.Confirm(ctx, entryID); err != nil {
		return fmt.Errorf("outbox confirm: %w", err)
	}
	return nil
}

// publishAll tries every sink and joins their errors.
func (p *Publisher) publishAll(ctx context.Context, msg Message) error {
	var errs []error
	for _, sink := range p.sinks {
		err := sink.Publish(ctx, msg)
		metrics.RecordEventPublish(sink.Name(), err)
		if err != nil {
			ev := logging.Ctx(ctx).Warn().Err(err).Str("sink", sink.Name()).Str("partition", msg.Partition)
			if isBreakerRejection(err) {
				ev = ev.Bool("breaker_open", true)
			}
			ev.Msg("Report publish failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// RetryPending republishes every outbox entry. An entry is removed once all
// sinks accept it, or discarded when it has failed MaxAttempts times.
func (p *Publisher) RetryPending(ctx context.Context) (RetryResult, error) {
	var res RetryResult
	if p.outbox == nil || len(p.sinks) == 0 {
		return res, nil
	}

	p.retryMu.Lock()
	defer p.retryMu.Unlock()

	entries, err := p.outbox.Pending(ctx)
	if err != nil {
		return res, err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		msg := Message{ID: reportID(e), Partition: e.Partition, Payload: e.Payload}
		pubErr := p.publishAll(ctx, msg)
		if pubErr == nil {
			if err := p.outbox.Confirm(ctx, e.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
				return res, fmt.Errorf("outbox confirm: %w", err)
			}
			res.Delivered++
			continue
		}

		attempts, err := p.outbox.RecordAttempt(ctx, e.ID, pubErr.Error())
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				continue
			}
			return res, fmt.Errorf("outbox record attempt: %w", err)
		}
		if attempts >= p.maxAttempts {
			if err := p.outbox.Discard(ctx, e.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
				return res, fmt.Errorf("outbox discard: %w", err)
			}
			logging.Error().Err(pubErr).Str("entry_id", e.ID).Str("partition", e.Partition).Int("attempts", attempts).Msg("Discarding report after repeated publish failures")
			res.Discarded++
			continue
		}
		res.Failed++
	}

	if res.Delivered+res.Failed+res.Discarded > 0 {
		logging.Info().Int("delivered", res.Delivered).Int("failed", res.Failed).Int("discarded", res.Discarded).Int64("pending", p.outbox.Len()).Msg("Outbox retry pass completed")
	}
	return res, nil
}

// reportID recovers the report ID for the message, falling back to the
// outbox entry ID.
func reportID(e *OutboxEntry) string {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Payload, &head); err == nil && head.ID != "" {
		return head.ID
	}
	return e.ID
}

// Close closes every sink and the outbox.
func (p *Publisher) Close() error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
		}
	}
	if p.outbox != nil {
		if err := p.outbox.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
