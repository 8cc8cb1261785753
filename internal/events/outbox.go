// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/metrics"
)

const prefixPending = "pending:"

// OutboxEntry is a report awaiting delivery.
type OutboxEntry struct {
	ID        string          `json:"id"`
	Partition string          `json:"partition"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`

	// Attempts counts failed publish attempts.
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// OutboxOptions configures the badger database behind an Outbox.
type OutboxOptions struct {
	Path string
	// InMemory keeps everything in memory. Path is ignored.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
}

// Outbox persists reports until every sink has accepted them.
type Outbox struct {
	db      *badger.DB
	pending atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// OpenOutbox opens (or creates) the outbox database.
func OpenOutbox(opts OutboxOptions) (*Outbox, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("outbox path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
		bopts.SyncWrites = opts.SyncWrites
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	o := &Outbox{db: db}
	n, err := o.countPending()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	o.setPending(n)

	logging.Info().Str("path", opts.Path).Bool("in_memory", opts.InMemory).Int64("pending", n).Msg("Outbox opened")
	return o, nil
}

func (o *Outbox) checkOpen() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOutboxClosed
	}
	return nil
}

func (o *Outbox) setPending(n int64) {
	o.pending.Store(n)
	metrics.OutboxPending.Set(float64(n))
}

func (o *Outbox) addPending(delta int64) {
	metrics.OutboxPending.Set(float64(o.pending.Add(delta)))
}

// Write stores a payload and returns its entry ID.
func (o *Outbox) Write(ctx context.Context, partition string, payload []byte) (string, error) {
	if err := o.checkOpen(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entry := OutboxEntry{
		ID:        uuid.New().String(),
		Partition: partition,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	err = o.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixPending+entry.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("write to BadgerDB: %w", err)
	}

	o.addPending(1)
	return entry.ID, nil
}

// Confirm removes a delivered entry.
func (o *Outbox) Confirm(ctx context.Context, id string) error {
	return o.delete(ctx, id)
}

// Discard removes an entry that will not be retried.
func (o *Outbox) Discard(ctx context.Context, id string) error {
	return o.delete(ctx, id)
}

func (o *Outbox) delete(ctx context.Context, id string) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(prefixPending + id)
	err := o.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("get entry: %w", err)
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	o.addPending(-1)
	return nil
}

// RecordAttempt notes a failed delivery and returns the new attempt count.
func (o *Outbox) RecordAttempt(ctx context.Context, id, lastError string) (int, error) {
	if err := o.checkOpen(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var attempts int
	key := []byte(prefixPending + id)
	err := o.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}

		var entry OutboxEntry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}

		entry.Attempts++
		entry.LastAttemptAt = time.Now().UTC()
		entry.LastError = lastError
		attempts = entry.Attempts

		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

// Pending returns every undelivered entry, oldest first.
func (o *Outbox) Pending(ctx context.Context) ([]*OutboxEntry, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*OutboxEntry
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			var entry OutboxEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Outbox failed to unmarshal entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Len returns the number of pending entries.
func (o *Outbox) Len() int64 {
	return o.pending.Load()
}

func (o *Outbox) countPending() (int64, error) {
	var n int64
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return n, nil
}

// Close closes the database. Further calls are no-ops.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true

	if err := o.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Outbox closed")
	return nil
}
