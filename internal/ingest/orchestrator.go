// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/roadwatch/internal/feed"
	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/metrics"
	"github.com/tomtom215/roadwatch/internal/models"
	"github.com/tomtom215/roadwatch/internal/partition"
)

// DefaultInterval is the pause between polling cycles.
const DefaultInterval = 2 * time.Minute

// Failure stages of a partition's unit of work.
const (
	StageFetch      = "fetch"
	StageBegin      = "begin"
	StageAlerts     = "alerts"
	StageJams       = "jams"
	StageSegments   = "segments"
	StageStatistics = "statistics"
	StageCommit     = "commit"
)

// Target binds a partition to the store that receives it.
type Target struct {
	Partition *partition.Partition
	Store     Store
}

// Source is a feed and the partitions its document is split into.
// The feed is fetched once per cycle.
type Source struct {
	Fetcher feed.Fetcher
	Targets []*Target
}

// OrchestratorConfig configures the polling loop.
type OrchestratorConfig struct {
	Interval           time.Duration
	StalenessThreshold time.Duration
	RunOnStart         bool
	// ParallelPartitions > 1 processes a source's partitions concurrently,
	// each in its own transaction.
	ParallelPartitions int
	// BackfillFrom, when set, is backfilled in each partition's first
	// successful cycle.
	BackfillFrom *time.Time
	Clock        Clock
	Notifier     Notifier
}

// Failure records a source or partition that failed in a cycle.
type Failure struct {
	Source    string `json:"source"`
	Partition string `json:"partition,omitempty"`
	Stage     string `json:"stage"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

// CycleReport summarizes one polling cycle.
type CycleReport struct {
	ID         string                    `json:"id"`
	StartedAt  time.Time                 `json:"started_at"`
	Duration   time.Duration             `json:"duration_ns"`
	Partitions []*models.PartitionReport `json:"partitions"`
	Failures   []Failure                 `json:"failures"`
}

// PartitionInfo describes a configured partition for status endpoints.
type PartitionInfo struct {
	Source      string    `json:"source"`
	Name        string    `json:"name"`
	Filter      string    `json:"filter"`
	Store       string    `json:"store"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Backfilled  bool      `json:"backfilled"`
}

type partitionState struct {
	lastSuccess time.Time
	lastError   string
	backfilled  bool
}

// Orchestrator drives fetch, partition, upsert, segment extraction, sweep
// and aggregation on a fixed interval. Each partition is its own unit of
// work: a failure is logged, its transaction rolled back, and processing
// continues with the next partition and the next cycle.
type Orchestrator struct {
	sources    []*Source
	engine     *Engine
	aggregator *Aggregator
	notifier   Notifier
	clock      Clock
	cfg        OrchestratorConfig

	mu        sync.RWMutex
	running   bool
	lastCycle time.Time
	states    map[string]*partitionState

	cycleMu  sync.Mutex // serializes cycles and manual backfills
	stopChan chan struct{}
	trigger  chan struct{}
	wg       sync.WaitGroup
}

// NewOrchestrator creates an orchestrator over sources.
func NewOrchestrator(sources []*Source, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ParallelPartitions < 1 {
		cfg.ParallelPartitions = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	states := make(map[string]*partitionState)
	for _, src := range sources {
		for _, t := range src.Targets {
			states[t.Partition.Name] = &partitionState{}
		}
	}

	return &Orchestrator{
		sources:    sources,
		engine:     NewEngine(NewSweeper(cfg.StalenessThreshold)),
		aggregator: NewAggregator(),
		notifier:   notifier,
		clock:      cfg.Clock,
		cfg:        cfg,
		states:     states,
		trigger:    make(chan struct{}, 1),
	}
}

// Start begins the polling loop. The first cycle runs immediately when
// RunOnStart is set.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is already running")
	}
	o.running = true
	o.stopChan = make(chan struct{})
	o.mu.Unlock()

	logging.Info().
		Int("sources", len(o.sources)).
		Dur("interval", o.cfg.Interval).
		Dur("staleness_threshold", o.engine.sweeper.Threshold).
		Int("parallel_partitions", o.cfg.ParallelPartitions).
		Msg("Starting ingestion orchestrator")

	o.wg.Add(1)
	go o.loop(ctx, o.stopChan)
	return nil
}

// Stop ends the polling loop and waits for an in-flight cycle to finish.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is not running")
	}
	o.running = false
	close(o.stopChan)
	o.mu.Unlock()

	o.wg.Wait()
	logging.Info().Msg("Ingestion orchestrator stopped")
	return nil
}

// TriggerCycle requests an immediate cycle. Requests made while one is
// already pending are coalesced.
func (o *Orchestrator) TriggerCycle() error {
	o.mu.RLock()
	running := o.running
	o.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	select {
	case o.trigger <- struct{}{}:
	default:
	}
	return nil
}

// LastCycleTime returns when the last cycle finished.
func (o *Orchestrator) LastCycleTime() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastCycle
}

func (o *Orchestrator) loop(ctx context.Context, stop <-chan struct{}) {
	defer o.wg.Done()

	if o.cfg.RunOnStart {
		o.RunCycle(ctx)
	}

	ticker := o.clock.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C():
			o.RunCycle(ctx)
		case <-o.trigger:
			o.RunCycle(ctx)
		}
	}
}

// RunCycle fetches every source once and processes its partitions.
func (o *Orchestrator) RunCycle(ctx context.Context) *CycleReport {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	report := &CycleReport{
		ID:        uuid.New().String(),
		StartedAt: o.clock.Now(),
	}
	ctx = logging.ContextWithCorrelationID(ctx, report.ID)
	logger := logging.Ctx(ctx)
	logger.Info().Msg("Ingestion cycle started")

	var mu sync.Mutex
	record := func(pr *models.PartitionReport, f *Failure) {
		mu.Lock()
		defer mu.Unlock()
		if f != nil {
			report.Failures = append(report.Failures, *f)
			return
		}
		report.Partitions = append(report.Partitions, pr)
	}

	for _, src := range o.sources {
		if ctx.Err() != nil {
			break
		}

		doc, err := src.Fetcher.Fetch(ctx)
		if err != nil {
			logger.Error().Err(err).Str("source", src.Fetcher.Name()).Msg("Feed fetch failed; skipping source this cycle")
			record(nil, &Failure{Source: src.Fetcher.Name(), Stage: StageFetch, Err: err, Message: err.Error()})
			continue
		}

		if o.cfg.ParallelPartitions <= 1 || len(src.Targets) <= 1 {
			for _, t := range src.Targets {
				record(o.runPartition(ctx, report.ID, src.Fetcher.Name(), t, doc))
			}
			continue
		}

		var g errgroup.Group
		g.SetLimit(o.cfg.ParallelPartitions)
		for _, t := range src.Targets {
			g.Go(func() error {
				record(o.runPartition(ctx, report.ID, src.Fetcher.Name(), t, doc))
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Duration = o.clock.Now().Sub(report.StartedAt)
	metrics.CycleDuration.Observe(report.Duration.Seconds())

	o.mu.Lock()
	o.lastCycle = o.clock.Now()
	o.mu.Unlock()

	logger.Info().
		Int("partitions_ok", len(report.Partitions)).
		Int("failures", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("Ingestion cycle completed")

	return report
}

// runPartition processes one partition's unit of work. Exactly one of the
// returned values is non-nil.
func (o *Orchestrator) runPartition(ctx context.Context, cycleID, source string, t *Target, doc *models.FeedDocument) (*models.PartitionReport, *Failure) {
	name := t.Partition.Name
	ctx = logging.ContextWithLogger(ctx, logging.LoggerFromContext(ctx).With().
		Str("source", source).
		Str("partition", name).
		Str("store", t.Store.Name()).
		Logger())
	logger := logging.Ctx(ctx)
	start := o.clock.Now()

	fail := func(stage string, err error) (*models.PartitionReport, *Failure) {
		logger.Error().Err(err).Str("stage", stage).Msg("Partition failed; rolled back")
		metrics.RecordPartitionCycle(name, o.clock.Now().Sub(start), stage)
		o.setState(name, func(s *partitionState) { s.lastError = err.Error() })
		return nil, &Failure{Source: source, Partition: name, Stage: stage, Err: err, Message: err.Error()}
	}

	subset := t.Partition.Apply(doc)

	tx, err := t.Store.Begin(ctx)
	if err != nil {
		return fail(StageBegin, persistenceError("begin", "", err))
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Warn().Err(rbErr).Msg("Rollback failed")
		}
	}()

	alerts, err := o.engine.UpsertAlerts(ctx, tx, subset.Alerts, o.clock.Now())
	if err != nil {
		return fail(StageAlerts, err)
	}
	logger.Debug().Int("inserted", alerts.Inserted).Int("refreshed", alerts.Refreshed).Int("skipped", alerts.Skipped).Int64("deactivated", alerts.Deactivated).Msg("Alerts upserted")

	jams, err := o.engine.UpsertJams(ctx, tx, subset.Jams, o.clock.Now())
	if err != nil {
		return fail(StageJams, err)
	}
	logger.Debug().Int("inserted", jams.Inserted).Int("refreshed", jams.Refreshed).Int("skipped", jams.Skipped).Int64("deactivated", jams.Deactivated).Msg("Jams upserted")

	segments := ExtractSegments(subset.Jams)
	written := 0
	if len(segments) > 0 {
		written, err = tx.InsertSegments(ctx, segments)
		if err != nil {
			return fail(StageSegments, persistenceError("insert", "segments", err))
		}
	}

	now := o.clock.Now()
	var stats []models.HourlyStatistic
	backfill := o.pendingBackfill(name)
	if backfill != nil {
		from := *backfill
		if err := CheckBackfillStart(now, from); err != nil {
			from = HourFloor(now).Add(-MaxBackfillWindow)
			logger.Warn().Err(err).Time("from", from).Msg("Backfill start clamped")
		}
		logger.Info().Time("from", from).Msg("Backfilling hourly statistics")
		bf, err := o.aggregator.Run(ctx, tx, now, &from)
		if err != nil {
			return fail(StageStatistics, err)
		}
		stats = append(stats, bf...)
	}
	current, err := o.aggregator.Run(ctx, tx, now, nil)
	if err != nil {
		return fail(StageStatistics, err)
	}
	stats = append(stats, current...)

	if err := tx.Commit(ctx); err != nil {
		return fail(StageCommit, persistenceError("commit", "", err))
	}
	committed = true

	completed := o.clock.Now()
	pr := &models.PartitionReport{
		ID:          uuid.New().String(),
		CycleID:     cycleID,
		Source:      source,
		Partition:   name,
		Alerts:      alerts,
		Jams:        jams,
		Segments:    written,
		Statistics:  stats,
		Duration:    completed.Sub(start),
		CompletedAt: completed,
	}

	o.setState(name, func(s *partitionState) {
		s.lastSuccess = completed
		s.lastError = ""
		if backfill != nil {
			s.backfilled = true
		}
	})

	metrics.RecordBatch(name, "alert", alerts.Inserted, alerts.Refreshed, alerts.Skipped, alerts.Deactivated)
	metrics.RecordBatch(name, "jam", jams.Inserted, jams.Refreshed, jams.Skipped, jams.Deactivated)
	metrics.IngestSegments.WithLabelValues(name).Add(float64(written))
	if cur, ok := pr.CurrentStatistic(); ok {
		metrics.RecordStatistics(name, len(stats), cur.TotalActiveJams, cur.TotalActiveAlerts)
	}
	metrics.RecordPartitionCycle(name, pr.Duration, "")

	logger.Info().
		Int("alerts", alerts.Inserted+alerts.Refreshed).
		Int("jams", jams.Inserted+jams.Refreshed).
		Int("skipped", alerts.Skipped+jams.Skipped).
		Int64("deactivated", alerts.Deactivated+jams.Deactivated).
		Int("segments", written).
		Int("statistics", len(stats)).
		Dur("duration", pr.Duration).
		Msg("Partition committed")

	if err := o.notifier.Notify(ctx, pr); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish partition report")
	}

	return pr, nil
}

func (o *Orchestrator) pendingBackfill(name string) *time.Time {
	if o.cfg.BackfillFrom == nil {
		return nil
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if s, ok := o.states[name]; ok && s.backfilled {
		return nil
	}
	return o.cfg.BackfillFrom
}

func (o *Orchestrator) setState(name string, fn func(*partitionState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.states[name]
	if !ok {
		s = &partitionState{}
		o.states[name] = s
	}
	fn(s)
}

func (o *Orchestrator) target(name string) (*Target, string, error) {
	for _, src := range o.sources {
		for _, t := range src.Targets {
			if t.Partition.Name == name {
				return t, src.Fetcher.Name(), nil
			}
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnknownPartition, name)
}

// Backfill recomputes every full hour from from up to the current hour for
// one partition. from may lie at most MaxBackfillWindow in the past. Hours
// are committed in chunks of BackfillChunk, each in its own transaction, and
// the cycle lock is released between chunks. When a chunk fails, earlier
// chunks stay committed; recomputing them is idempotent.
func (o *Orchestrator) Backfill(ctx context.Context, partitionName string, from time.Time) ([]models.HourlyStatistic, error) {
	t, _, err := o.target(partitionName)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	if err := CheckBackfillStart(now, from); err != nil {
		return nil, err
	}

	hours := o.aggregator.HoursToCompute(now, &from)
	stats := make([]models.HourlyStatistic, 0, len(hours))
	for len(hours) > 0 {
		n := min(BackfillChunk, len(hours))
		chunk, err := o.backfillChunk(ctx, t, hours[:n], now)
		if err != nil {
			return nil, err
		}
		stats = append(stats, chunk...)
		hours = hours[n:]
	}

	metrics.StatisticsHoursComputed.WithLabelValues(partitionName).Add(float64(len(stats)))
	logging.Info().Str("partition", partitionName).Time("from", from).Int("hours", len(stats)).Msg("Statistics backfill completed")
	return stats, nil
}

func (o *Orchestrator) backfillChunk(ctx context.Context, t *Target, hours []time.Time, computedAt time.Time) ([]models.HourlyStatistic, error) {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	tx, err := t.Store.Begin(ctx)
	if err != nil {
		return nil, persistenceError("begin", "", err)
	}
	stats, err := o.aggregator.RunHours(ctx, tx, hours, computedAt)
	if err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logging.Warn().Err(rbErr).Str("partition", t.Partition.Name).Msg("Rollback failed")
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceError("commit", "", err)
	}
	return stats, nil
}

// Statistics returns a partition's hourly statistics with from <= stat_time < to.
func (o *Orchestrator) Statistics(ctx context.Context, partitionName string, from, to time.Time) ([]models.HourlyStatistic, error) {
	t, _, err := o.target(partitionName)
	if err != nil {
		return nil, err
	}
	stats, err := t.Store.ListStatistics(ctx, from, to)
	if err != nil {
		return nil, persistenceError("list", tableStatistics, err)
	}
	return stats, nil
}

// Partitions lists the configured partitions in configuration order.
func (o *Orchestrator) Partitions() []PartitionInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var out []PartitionInfo
	for _, src := range o.sources {
		for _, t := range src.Targets {
			info := PartitionInfo{
				Source: src.Fetcher.Name(),
				Name:   t.Partition.Name,
				Filter: t.Partition.Describe(),
				Store:  t.Store.Name(),
			}
			if s, ok := o.states[t.Partition.Name]; ok {
				info.LastSuccess = s.lastSuccess
				info.LastError = s.lastError
				info.Backfilled = s.backfilled
			}
			out = append(out, info)
		}
	}
	return out
}

// Ping checks every distinct store.
func (o *Orchestrator) Ping(ctx context.Context) error {
	seen := make(map[Store]struct{})
	var errs []error
	for _, src := range o.sources {
		for _, t := range src.Targets {
			if _, ok := seen[t.Store]; ok {
				continue
			}
			seen[t.Store] = struct{}{}
			if err := t.Store.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("store %s: %w", t.Store.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
