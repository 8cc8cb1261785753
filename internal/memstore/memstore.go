// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/models"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memstore: store is closed")

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memstore: transaction already committed or rolled back")

type eventKey struct {
	uuid      string
	published int64 // unix milliseconds
}

func keyOf(uuid string, publishedAt time.Time) eventKey {
	return eventKey{uuid: uuid, published: publishedAt.UnixMilli()}
}

type snapshot struct {
	alerts   map[eventKey]models.Alert
	jams     map[eventKey]models.Jam
	segments []models.Segment
	stats    map[int64]models.HourlyStatistic // keyed by stat_time unix seconds
}

func newSnapshot() *snapshot {
	return &snapshot{
		alerts: make(map[eventKey]models.Alert),
		jams:   make(map[eventKey]models.Jam),
		stats:  make(map[int64]models.HourlyStatistic),
	}
}

func (s *snapshot) clone() *snapshot {
	c := &snapshot{
		alerts:   make(map[eventKey]models.Alert, len(s.alerts)),
		jams:     make(map[eventKey]models.Jam, len(s.jams)),
		segments: make([]models.Segment, len(s.segments)),
		stats:    make(map[int64]models.HourlyStatistic, len(s.stats)),
	}
	for k, v := range s.alerts {
		c.alerts[k] = v
	}
	for k, v := range s.jams {
		c.jams[k] = v
	}
	copy(c.segments, s.segments)
	for k, v := range s.stats {
		c.stats[k] = v
	}
	return c
}

// Store is an in-memory ingest.Store. Transactions work on a private copy
// of the data that Commit swaps in; one transaction runs at a time.
type Store struct {
	name string

	mu     sync.RWMutex
	data   *snapshot
	closed bool

	writer chan struct{} // holds a token while a transaction is open
}

// New creates an empty store.
func New(name string) *Store {
	return &Store{
		name:   name,
		data:   newSnapshot(),
		writer: make(chan struct{}, 1),
	}
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Begin waits for any open transaction to finish and starts a new one.
func (s *Store) Begin(ctx context.Context) (ingest.Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		<-s.writer
		return nil, ErrClosed
	}
	return &tx{store: s, data: s.data.clone()}, nil
}

// ListStatistics returns committed statistics with from <= stat_time < to.
func (s *Store) ListStatistics(ctx context.Context, from, to time.Time) ([]models.HourlyStatistic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []models.HourlyStatistic
	for _, st := range s.data.stats {
		if !st.StatTime.Before(from) && st.StatTime.Before(to) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatTime.Before(out[j].StatTime) })
	return out, nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Alert returns the committed alert row for a key.
func (s *Store) Alert(uuid string, publishedAt time.Time) (models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.alerts[keyOf(uuid, publishedAt)]
	return a, ok
}

// Jam returns the committed jam row for a key.
func (s *Store) Jam(uuid string, publishedAt time.Time) (models.Jam, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.data.jams[keyOf(uuid, publishedAt)]
	return j, ok
}

// Segments returns a copy of the committed segment rows in insertion order.
func (s *Store) Segments() []models.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Segment, len(s.data.segments))
	copy(out, s.data.segments)
	return out
}

// Counts returns the committed row counts per table.
func (s *Store) Counts() (alerts, jams, segments, statistics int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.alerts), len(s.data.jams), len(s.data.segments), len(s.data.stats)
}

type tx struct {
	store *Store
	data  *snapshot
	done  bool
}

func (t *tx) UpsertAlert(ctx context.Context, a *models.Alert) (ingest.UpsertOutcome, error) {
	if t.done {
		return 0, ErrTxDone
	}
	k := keyOf(a.UUID, a.PublishedAt)
	if existing, ok := t.data.alerts[k]; ok {
		existing.LastUpdated = laterOf(existing.LastUpdated, a.LastUpdated)
		existing.Active = true
		t.data.alerts[k] = existing
		return ingest.Refreshed, nil
	}
	row := *a
	row.Active = true
	t.data.alerts[k] = row
	return ingest.Inserted, nil
}

func (t *tx) UpsertJam(ctx context.Context, j *models.Jam) (ingest.UpsertOutcome, error) {
	if t.done {
		return 0, ErrTxDone
	}
	k := keyOf(j.UUID, j.PublishedAt)
	if existing, ok := t.data.jams[k]; ok {
		existing.LastUpdated = laterOf(existing.LastUpdated, j.LastUpdated)
		existing.Active = true
		t.data.jams[k] = existing
		return ingest.Refreshed, nil
	}
	row := *j
	row.Active = true
	row.Line = append(models.LineString(nil), j.Line...)
	t.data.jams[k] = row
	return ingest.Inserted, nil
}

func (t *tx) InsertSegments(ctx context.Context, segments []models.Segment) (int, error) {
	if t.done {
		return 0, ErrTxDone
	}
	t.data.segments = append(t.data.segments, segments...)
	return len(segments), nil
}

func (t *tx) Deactivate(ctx context.Context, table ingest.Table, cutoff time.Time) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	var n int64
	switch table {
	case ingest.TableAlerts:
		for k, a := range t.data.alerts {
			if a.Active && a.LastUpdated.Before(cutoff) {
				a.Active = false
				t.data.alerts[k] = a
				n++
			}
		}
	case ingest.TableJams:
		for k, j := range t.data.jams {
			if j.Active && j.LastUpdated.Before(cutoff) {
				j.Active = false
				t.data.jams[k] = j
				n++
			}
		}
	default:
		return 0, errors.New("memstore: unknown table " + string(table))
	}
	return n, nil
}

func (t *tx) AggregateHour(ctx context.Context, start time.Time) (ingest.HourAggregate, error) {
	if t.done {
		return ingest.HourAggregate{}, ErrTxDone
	}

	var agg ingest.HourAggregate
	var speeds, lengths, delays, levels []float64
	for _, j := range t.data.jams {
		if !ingest.OverlapsHour(j.PublishedAt, j.LastUpdated, start) {
			continue
		}
		agg.ActiveJams++
		if j.SpeedKMH != nil {
			speeds = append(speeds, *j.SpeedKMH)
		}
		if j.JamLength != nil {
			lengths = append(lengths, float64(*j.JamLength))
		}
		if j.Delay != nil {
			delays = append(delays, float64(*j.Delay))
		}
		if j.JamLevel != nil {
			levels = append(levels, float64(*j.JamLevel))
		}
	}
	for _, a := range t.data.alerts {
		if ingest.OverlapsHour(a.PublishedAt, a.LastUpdated, start) {
			agg.ActiveAlerts++
		}
	}

	agg.AvgSpeedKMH = mean(speeds)
	agg.AvgJamLength = mean(lengths)
	agg.AvgDelay = mean(delays)
	agg.AvgJamLevel = mean(levels)
	return agg, nil
}

func (t *tx) UpsertStatistic(ctx context.Context, s *models.HourlyStatistic) error {
	if t.done {
		return ErrTxDone
	}
	t.data.stats[s.StatTime.Unix()] = *s
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer func() { <-t.store.writer }()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.closed {
		return ErrClosed
	}
	t.store.data = t.data
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.data = nil
	<-t.store.writer
	return nil
}

// mean returns the arithmetic mean, or nil for no values (SQL AVG semantics).
func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	m := stat.Mean(xs, nil)
	return &m
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
