// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/models"
)

// backfillLayouts are the accepted backfill timestamp formats, tried in order.
// All are interpreted as UTC unless they carry an offset.
var backfillLayouts = []string{
	"02.01.2006 15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
}

// ParseBackfillStart parses a backfill start timestamp. An empty string
// means no backfill and returns nil.
func ParseBackfillStart(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range backfillLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &ConfigError{
		Field: "backfill_from",
		Value: s,
		Err:   errors.New("use DD.MM.YYYY HH:MM, YYYY-MM-DD HH:MM or RFC 3339"),
	}
}

// MaxBackfillWindow bounds how far before the current hour a backfill may
// start. A manual backfill commits one BackfillChunk of hours per
// transaction so ingestion cycles can run in between.
const (
	MaxBackfillWindow = 31 * 24 * time.Hour
	BackfillChunk     = 24
)

// CheckBackfillStart returns a ConfigError when from lies more than
// MaxBackfillWindow before the hour containing now.
func CheckBackfillStart(now, from time.Time) error {
	earliest := HourFloor(now).Add(-MaxBackfillWindow)
	if HourFloor(from).Before(earliest) {
		return &ConfigError{
			Field: "backfill_from",
			Value: from.UTC().Format(time.RFC3339),
			Err:   fmt.Errorf("must not be before %s (%s window)", earliest.Format(time.RFC3339), MaxBackfillWindow),
		}
	}
	return nil
}

// HourFloor rounds t down to the start of its UTC hour.
func HourFloor(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// Aggregator computes hourly statistics.
//
// Recomputing an hour overwrites its row, so a bucket's values can drift when
// late observations extend an event's interval into an earlier hour. The
// computed_at column records when each snapshot was taken.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// HoursToCompute lists the hour buckets to compute at now. Without from it
// is the current hour only. With from it is every full hour from the hour
// containing from up to, but excluding, the current hour, in order.
func (a *Aggregator) HoursToCompute(now time.Time, from *time.Time) []time.Time {
	current := HourFloor(now)
	if from == nil {
		return []time.Time{current}
	}

	var hours []time.Time
	for h := HourFloor(*from); h.Before(current); h = h.Add(time.Hour) {
		hours = append(hours, h)
	}
	return hours
}

// ComputeHour aggregates the bucket starting at start and upserts the row.
// Undefined aggregates are stored as zero.
func (a *Aggregator) ComputeHour(ctx context.Context, tx Tx, start, computedAt time.Time) (models.HourlyStatistic, error) {
	start = HourFloor(start)

	agg, err := tx.AggregateHour(ctx, start)
	if err != nil {
		return models.HourlyStatistic{}, persistenceError("aggregate", "", err)
	}

	stat := models.HourlyStatistic{
		StatTime:          start,
		TotalActiveJams:   agg.ActiveJams,
		TotalActiveAlerts: agg.ActiveAlerts,
		AvgSpeedKMH:       valueOrZero(agg.AvgSpeedKMH),
		AvgJamLength:      valueOrZero(agg.AvgJamLength),
		AvgDelay:          valueOrZero(agg.AvgDelay),
		AvgJamLevel:       valueOrZero(agg.AvgJamLevel),
		ComputedAt:        computedAt.UTC(),
	}

	if err := tx.UpsertStatistic(ctx, &stat); err != nil {
		return models.HourlyStatistic{}, persistenceError("upsert", tableStatistics, err)
	}
	return stat, nil
}

// Run computes every hour from HoursToCompute(now, from) and returns the
// rows written. Each hour is written exactly once.
func (a *Aggregator) Run(ctx context.Context, tx Tx, now time.Time, from *time.Time) ([]models.HourlyStatistic, error) {
	hours := a.HoursToCompute(now, from)
	if from != nil && len(hours) == 0 {
		logging.Ctx(ctx).Warn().Time("from", *from).Msg("Backfill start is not before the current hour; nothing to backfill")
	}

	return a.RunHours(ctx, tx, hours, now)
}

// RunHours computes the given hour buckets in order, stamping each row with
// computedAt.
func (a *Aggregator) RunHours(ctx context.Context, tx Tx, hours []time.Time, computedAt time.Time) ([]models.HourlyStatistic, error) {
	stats := make([]models.HourlyStatistic, 0, len(hours))
	for _, h := range hours {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stat, err := a.ComputeHour(ctx, tx, h, computedAt)
		if err != nil {
			return stats, err
		}
		stats = append(stats, stat)
		logging.Ctx(ctx).Debug().Time("stat_time", h).Int64("jams", stat.TotalActiveJams).Int64("alerts", stat.TotalActiveAlerts).Msg("Computed hourly statistic")
	}
	return stats, nil
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
