// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/roadwatch/internal/config"
	"github.com/tomtom215/roadwatch/internal/feed"
	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/memstore"
	"github.com/tomtom215/roadwatch/internal/models"
	"github.com/tomtom215/roadwatch/internal/partition"
)

// published is 2024-04-25T10:15:00Z, the pubMillis used by every test event.
var (
	published = time.Date(2024, 4, 25, 10, 15, 0, 0, time.UTC)
	start     = time.Date(2024, 4, 25, 10, 20, 0, 0, time.UTC)
)

const pubMillis = 1714040100000

type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	tick chan time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, tick: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) NewTicker(time.Duration) ingest.Ticker { return fakeTicker{c.tick} }

type fakeTicker struct{ c chan time.Time }

func (t fakeTicker) C() <-chan time.Time { return t.c }
func (t fakeTicker) Stop()               {}

// stubFetcher serves a fixed document, or err when set.
type stubFetcher struct {
	mu   sync.Mutex
	name string
	doc  *models.FeedDocument
	err  error
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) Fetch(ctx context.Context) (*models.FeedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *stubFetcher) Serve(doc *models.FeedDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = doc
}

type alertSpec struct{ uuid, city, street string }

type jamSpec struct {
	uuid, city, street string
	speed              float64
	segments           int
}

// document builds a feed document through the real decoder.
func document(t *testing.T, alerts []alertSpec, jams []jamSpec) *models.FeedDocument {
	t.Helper()
	var parts []string
	for _, a := range alerts {
		parts = append(parts, fmt.Sprintf(
			`{"uuid":%q,"pubMillis":%d,"city":%q,"street":%q,"location":{"x":16.6,"y":49.19}}`,
			a.uuid, pubMillis, a.city, a.street))
	}
	alertJSON := strings.Join(parts, ",")

	parts = parts[:0]
	for i, j := range jams {
		var segs []string
		for s := 0; s < j.segments; s++ {
			segs = append(segs, fmt.Sprintf(`{"fromNode":%d,"toNode":%d,"ID":%d,"isForward":true}`, s, s+1, 100+s))
		}
		parts = append(parts, fmt.Sprintf(
			`{"uuid":%q,"id":%d,"pubMillis":%d,"city":%q,"street":%q,"speedKMH":%g,"line":[{"x":16.60,"y":49.19},{"x":16.61,"y":49.20}],"segments":[%s]}`,
			j.uuid, i+1, pubMillis, j.city, j.street, j.speed, strings.Join(segs, ",")))
	}
	jamJSON := strings.Join(parts, ",")

	doc, err := feed.Decode([]byte(`{"alerts":[` + alertJSON + `],"jams":[` + jamJSON + `]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return doc
}

func cityPartition(t *testing.T, name, city string) *partition.Partition {
	t.Helper()
	p, err := partition.New("waze", config.PartitionConfig{
		Name:   name,
		Filter: config.FilterConfig{Field: "city", Op: partition.OpEq, Values: []string{city}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// failingStore fails every jam upsert.
type failingStore struct {
	*memstore.Store
}

func (s failingStore) Begin(ctx context.Context) (ingest.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{tx}, nil
}

type failingTx struct {
	ingest.Tx
}

func (failingTx) UpsertJam(context.Context, *models.Jam) (ingest.UpsertOutcome, error) {
	return 0, errors.New("constraint violation")
}

type fixture struct {
	clock   *fakeClock
	fetcher *stubFetcher
	brno    *memstore.Store
	praha   *memstore.Store
	orch    *ingest.Orchestrator
}

func newFixture(t *testing.T, cfg ingest.OrchestratorConfig) *fixture {
	t.Helper()
	f := &fixture{
		clock:   newFakeClock(start),
		fetcher: &stubFetcher{name: "waze"},
		brno:    memstore.New("brno"),
		praha:   memstore.New("praha"),
	}
	cfg.Clock = f.clock
	f.orch = ingest.NewOrchestrator([]*ingest.Source{{
		Fetcher: f.fetcher,
		Targets: []*ingest.Target{
			{Partition: cityPartition(t, "brno", "Brno"), Store: f.brno},
			{Partition: cityPartition(t, "praha", "Praha"), Store: f.praha},
		},
	}}, cfg)
	return f
}

func TestRunCyclePartitionsDocument(t *testing.T) {
	f := newFixture(t, ingest.OrchestratorConfig{})
	f.fetcher.Serve(document(t,
		[]alertSpec{{"a1", "Brno", "Husova"}, {"a2", "Praha", "Vodickova"}, {"a3", "Ostrava", "Nadrazni"}},
		[]jamSpec{{"j1", "Brno", "Husova", 20, 2}, {"j2", "Brno", "Kounicova", 40, 0}, {"j3", "Praha", "Wilsonova", 10, 1}},
	))

	report := f.orch.RunCycle(context.Background())
	if len(report.Failures) != 0 {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if len(report.Partitions) != 2 {
		t.Fatalf("partitions = %d, want 2", len(report.Partitions))
	}

	alerts, jams, segments, stats := f.brno.Counts()
	if alerts != 1 || jams != 2 || segments != 2 || stats != 1 {
		t.Errorf("brno counts = %d/%d/%d/%d, want 1/2/2/1", alerts, jams, segments, stats)
	}
	alerts, jams, segments, _ = f.praha.Counts()
	if alerts != 1 || jams != 1 || segments != 1 {
		t.Errorf("praha counts = %d/%d/%d, want 1/1/1", alerts, jams, segments)
	}

	got, err := f.orch.Statistics(context.Background(), "brno", start.Add(-time.Hour), start.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("statistics = %+v", got)
	}
	st := got[0]
	if !st.StatTime.Equal(ingest.HourFloor(start)) || st.TotalActiveJams != 2 || st.TotalActiveAlerts != 1 || st.AvgSpeedKMH != 30 {
		t.Errorf("statistic = %+v", st)
	}
}

func TestRunCycleRefreshAndSweep(t *testing.T) {
	f := newFixture(t, ingest.OrchestratorConfig{StalenessThreshold: 5 * time.Minute})
	ctx := context.Background()

	f.fetcher.Serve(document(t, nil, []jamSpec{{"j1", "Brno", "Husova", 20, 0}, {"j2", "Brno", "Husova", 20, 0}}))
	f.orch.RunCycle(ctx)

	// j2 disappears from the feed and j1 reports a new street.
	f.fetcher.Serve(document(t, nil, []jamSpec{{"j1", "Brno", "Renamed", 20, 0}}))

	f.clock.Set(start.Add(4 * time.Minute))
	report := f.orch.RunCycle(ctx)
	if len(report.Partitions) != 2 {
		t.Fatalf("report = %+v", report)
	}
	brno := report.Partitions[0]
	if brno.Partition != "brno" {
		brno = report.Partitions[1]
	}
	if brno.Jams.Refreshed != 1 || brno.Jams.Inserted != 0 || brno.Jams.Deactivated != 0 {
		t.Errorf("jams after 4m = %+v", brno.Jams)
	}
	if j, _ := f.brno.Jam("j2", published); !j.Active {
		t.Error("j2 should still be active 4 minutes after its last update")
	}

	f.clock.Set(start.Add(6 * time.Minute))
	f.orch.RunCycle(ctx)

	j2, _ := f.brno.Jam("j2", published)
	if j2.Active {
		t.Error("j2 should be inactive 6 minutes after its last update")
	}
	j1, ok := f.brno.Jam("j1", published)
	if !ok || !j1.Active {
		t.Fatalf("j1 = %+v, want active", j1)
	}
	if !j1.LastUpdated.Equal(start.Add(6 * time.Minute)) {
		t.Errorf("j1 last_updated = %v, want latest cycle", j1.LastUpdated)
	}
	if j1.Street != "Husova" {
		t.Errorf("j1 street = %q, want first observed value", j1.Street)
	}
	if _, jams, _, _ := f.brno.Counts(); jams != 2 {
		t.Errorf("jams = %d, want 2 (no duplicates)", jams)
	}
}

func TestRunCycleSkipsInvalidRecords(t *testing.T) {
	f := newFixture(t, ingest.OrchestratorConfig{})
	doc, err := feed.Decode([]byte(`{
		"alerts":[
			{"uuid":"ok","pubMillis":1714040100000,"city":"Brno","location":{"x":16.6,"y":49.19}},
			{"uuid":"bad","pubMillis":1714040100000,"city":"Brno","location":{"x":"x","y":49.19}}
		],
		"jams":[
			{"uuid":"single","pubMillis":1714040100000,"city":"Brno","line":[{"x":1,"y":2}]}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	f.fetcher.Serve(doc)

	report := f.orch.RunCycle(context.Background())
	var brno *models.PartitionReport
	for _, pr := range report.Partitions {
		if pr.Partition == "brno" {
			brno = pr
		}
	}
	if brno == nil {
		t.Fatalf("no brno report: %+v", report)
	}
	if brno.Alerts.Inserted != 1 || brno.Alerts.Skipped != 1 {
		t.Errorf("alerts = %+v", brno.Alerts)
	}
	if brno.Jams.Skipped != 1 || brno.Jams.Inserted != 0 {
		t.Errorf("jams = %+v", brno.Jams)
	}
}

func TestRunCyclePartitionFailureIsolated(t *testing.T) {
	clock := newFakeClock(start)
	fetcher := &stubFetcher{name: "waze"}
	fetcher.Serve(document(t,
		[]alertSpec{{"a1", "Brno", "Husova"}, {"a2", "Praha", "Vodickova"}},
		[]jamSpec{{"j1", "Brno", "Husova", 20, 1}, {"j2", "Praha", "Wilsonova", 10, 0}},
	))
	broken := memstore.New("broken")
	healthy := memstore.New("healthy")

	orch := ingest.NewOrchestrator([]*ingest.Source{{
		Fetcher: fetcher,
		Targets: []*ingest.Target{
			{Partition: cityPartition(t, "brno", "Brno"), Store: failingStore{broken}},
			{Partition: cityPartition(t, "praha", "Praha"), Store: healthy},
		},
	}}, ingest.OrchestratorConfig{Clock: clock})

	report := orch.RunCycle(context.Background())
	if len(report.Failures) != 1 || len(report.Partitions) != 1 {
		t.Fatalf("report = %+v", report)
	}
	failure := report.Failures[0]
	if failure.Partition != "brno" || failure.Stage != ingest.StageJams {
		t.Errorf("failure = %+v", failure)
	}
	var pe *ingest.PersistenceError
	if !errors.As(failure.Err, &pe) {
		t.Errorf("failure error = %v, want PersistenceError", failure.Err)
	}

	// The alerts written before the failure were rolled back.
	alerts, jams, segments, stats := broken.Counts()
	if alerts+jams+segments+stats != 0 {
		t.Errorf("broken store counts = %d/%d/%d/%d, want nothing committed", alerts, jams, segments, stats)
	}
	if alerts, jams, _, _ := healthy.Counts(); alerts != 1 || jams != 1 {
		t.Errorf("healthy store counts = %d/%d, want 1/1", alerts, jams)
	}

	infos := orch.Partitions()
	if infos[0].LastError == "" || !infos[0].LastSuccess.IsZero() {
		t.Errorf("brno info = %+v", infos[0])
	}
	if infos[1].LastError != "" || infos[1].LastSuccess.IsZero() {
		t.Errorf("praha info = %+v", infos[1])
	}
}

func TestRunCycleFetchFailure(t *testing.T) {
	f := newFixture(t, ingest.OrchestratorConfig{})
	f.fetcher.err = &feed.FetchError{Source: "waze", Kind: feed.KindStatus, StatusCode: 503}

	report := f.orch.RunCycle(context.Background())
	if len(report.Partitions) != 0 || len(report.Failures) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Failures[0].Stage != ingest.StageFetch || report.Failures[0].Partition != "" {
		t.Errorf("failure = %+v", report.Failures[0])
	}
	if alerts, jams, _, stats := f.brno.Counts(); alerts+jams+stats != 0 {
		t.Error("nothing should be written when the fetch fails")
	}
}

func TestRunCycleBackfillsOnce(t *testing.T) {
	from := start.Add(-3 * time.Hour)
	f := newFixture(t, ingest.OrchestratorConfig{BackfillFrom: &from})
	f.fetcher.Serve(document(t, nil, []jamSpec{{"j1", "Brno", "Husova", 20, 0}}))
	ctx := context.Background()

	report := f.orch.RunCycle(ctx)
	for _, pr := range report.Partitions {
		if len(pr.Statistics) != 4 {
			t.Errorf("%s first cycle computed %d hours, want 3 backfilled + current", pr.Partition, len(pr.Statistics))
		}
	}
	if _, _, _, stats := f.brno.Counts(); stats != 4 {
		t.Errorf("brno statistics = %d, want 4", stats)
	}

	report = f.orch.RunCycle(ctx)
	for _, pr := range report.Partitions {
		if len(pr.Statistics) != 1 {
			t.Errorf("%s second cycle computed %d hours, want 1", pr.Partition, len(pr.Statistics))
		}
	}
	for _, info := range f.orch.Partitions() {
		if !info.Backfilled {
			t.Errorf("%s not marked backfilled", info.Name)
		}
	}
}

func TestBackfill(t *testing.T) {
	f := newFixture(t, ingest.OrchestratorConfig{})
	f.fetcher.Serve(document(t, nil, []jamSpec{{"j1", "Brno", "Husova", 20, 0}}))
	ctx := context.Background()
	f.orch.RunCycle(ctx)

	f.clock.Set(start.Add(2 * time.Hour))
	stats, err := f.orch.Backfill(ctx, "brno", start)
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Backfill() computed %d hours, want 2", len(stats))
	}
	// j1 was last updated at 10:20, so only the 10:00 bucket counts it.
	if stats[0].TotalActiveJams != 1 || stats[1].TotalActiveJams != 0 {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := f.orch.Backfill(ctx, "nowhere", start); !errors.Is(err, ingest.ErrUnknownPartition) {
		t.Errorf("Backfill(unknown) error = %v, want ErrUnknownPartition", err)
	}
	if _, err := f.orch.Statistics(ctx, "nowhere", start, start); !errors.Is(err, ingest.ErrUnknownPartition) {
		t.Errorf("Statistics(unknown) error = %v, want ErrUnknownPartition", err)
	}
}

func TestBackfillWindowAndChunks(t *testing.T) {
	f := newFixture(t, ingest.OrchestratorConfig{})
	ctx := context.Background()

	_, err := f.orch.Backfill(ctx, "brno", start.Add(-ingest.MaxBackfillWindow-2*time.Hour))
	var ce *ingest.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Backfill(too old) error = %v, want ConfigError", err)
	}
	if _, _, _, stats := f.brno.Counts(); stats != 0 {
		t.Errorf("statistics = %d, want none written for a rejected range", stats)
	}

	stats, err := f.orch.Backfill(ctx, "brno", start.Add(-50*time.Hour))
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if len(stats) != 50 {
		t.Fatalf("Backfill() computed %d hours, want 50", len(stats))
	}
	for i := 1; i < len(stats); i++ {
		if stats[i].StatTime.Sub(stats[i-1].StatTime) != time.Hour {
			t.Fatalf("gap between %v and %v", stats[i-1].StatTime, stats[i].StatTime)
		}
	}
	if _, _, _, n := f.brno.Counts(); n != 50 {
		t.Errorf("statistics = %d, want 50 across chunks", n)
	}
}

func TestRunCycleClampsOldBackfill(t *testing.T) {
	from := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, ingest.OrchestratorConfig{BackfillFrom: &from})
	f.fetcher.Serve(document(t, nil, nil))

	report := f.orch.RunCycle(context.Background())
	if len(report.Failures) != 0 {
		t.Fatalf("failures = %+v", report.Failures)
	}
	want := int(ingest.MaxBackfillWindow/time.Hour) + 1
	for _, pr := range report.Partitions {
		if len(pr.Statistics) != want {
			t.Errorf("%s computed %d hours, want %d (clamped window + current)", pr.Partition, len(pr.Statistics), want)
		}
	}
}

func TestNotifier(t *testing.T) {
	var mu sync.Mutex
	var got []string
	notifier := ingest.NotifierFunc(func(_ context.Context, r *models.PartitionReport) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, r.Partition)
		return errors.New("sink down")
	})

	f := newFixture(t, ingest.OrchestratorConfig{Notifier: notifier})
	f.fetcher.Serve(document(t, []alertSpec{{"a1", "Brno", "Husova"}}, nil))

	report := f.orch.RunCycle(context.Background())
	if len(report.Failures) != 0 {
		t.Errorf("notifier error must not fail the partition: %+v", report.Failures)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Errorf("notified %v, want both partitions", got)
	}
}

func TestParallelPartitions(t *testing.T) {
	clock := newFakeClock(start)
	fetcher := &stubFetcher{name: "waze"}
	cities := []string{"Brno", "Praha", "Ostrava", "Plzen", "Olomouc"}

	var alerts []alertSpec
	var targets []*ingest.Target
	stores := make([]*memstore.Store, len(cities))
	for i, city := range cities {
		alerts = append(alerts, alertSpec{"a-" + city, city, "Main"})
		stores[i] = memstore.New(city)
		targets = append(targets, &ingest.Target{Partition: cityPartition(t, strings.ToLower(city), city), Store: stores[i]})
	}
	fetcher.Serve(document(t, alerts, nil))

	orch := ingest.NewOrchestrator([]*ingest.Source{{Fetcher: fetcher, Targets: targets}},
		ingest.OrchestratorConfig{Clock: clock, ParallelPartitions: 3})

	report := orch.RunCycle(context.Background())
	if len(report.Partitions) != len(cities) || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}
	for i, s := range stores {
		if a, _, _, _ := s.Counts(); a != 1 {
			t.Errorf("%s alerts = %d, want 1", cities[i], a)
		}
	}
}

func TestStartStopTrigger(t *testing.T) {
	done := make(chan string, 8)
	notifier := ingest.NotifierFunc(func(_ context.Context, r *models.PartitionReport) error {
		done <- r.Partition
		return nil
	})
	f := newFixture(t, ingest.OrchestratorConfig{Notifier: notifier, Interval: time.Hour})
	f.fetcher.Serve(document(t, []alertSpec{{"a1", "Brno", "Husova"}}, nil))

	if err := f.orch.TriggerCycle(); !errors.Is(err, ingest.ErrNotRunning) {
		t.Errorf("TriggerCycle() before Start error = %v, want ErrNotRunning", err)
	}

	ctx := context.Background()
	if err := f.orch.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.orch.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	waitCycle := func(what string) {
		t.Helper()
		for i := 0; i < 2; i++ {
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("%s: cycle did not run", what)
			}
		}
	}

	if err := f.orch.TriggerCycle(); err != nil {
		t.Fatalf("TriggerCycle() error = %v", err)
	}
	waitCycle("trigger")

	f.clock.tick <- start.Add(time.Hour)
	waitCycle("tick")

	if f.orch.LastCycleTime().IsZero() {
		t.Error("LastCycleTime() should be set")
	}

	if err := f.orch.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := f.orch.Stop(); err == nil {
		t.Error("second Stop() should fail")
	}
	if err := f.orch.TriggerCycle(); !errors.Is(err, ingest.ErrNotRunning) {
		t.Errorf("TriggerCycle() after Stop error = %v, want ErrNotRunning", err)
	}
}

func TestRunOnStart(t *testing.T) {
	done := make(chan struct{}, 4)
	notifier := ingest.NotifierFunc(func(context.Context, *models.PartitionReport) error {
		done <- struct{}{}
		return nil
	})
	f := newFixture(t, ingest.OrchestratorConfig{Notifier: notifier, RunOnStart: true})
	f.fetcher.Serve(document(t, nil, nil))

	if err := f.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer f.orch.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("initial cycle did not run")
	}
}

func TestPing(t *testing.T) {
	f := newFixture(t, ingest.OrchestratorConfig{})
	if err := f.orch.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	_ = f.praha.Close()
	err := f.orch.Ping(context.Background())
	if !errors.Is(err, memstore.ErrClosed) {
		t.Errorf("Ping() error = %v, want ErrClosed", err)
	}
}
