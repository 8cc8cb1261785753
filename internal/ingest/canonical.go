// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import (
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/roadwatch/internal/models"
)

// CanonicalAlert validates a raw alert and converts it to a row observed at now.
func CanonicalAlert(raw *models.FeedAlert, now time.Time) (*models.Alert, error) {
	invalid := func(field string, err error) error {
		return &ValidationError{Kind: "alert", UUID: raw.UUID, Field: field, Err: err}
	}

	if raw.UUID == "" {
		return nil, invalid("uuid", ErrMissingField)
	}
	if raw.Location == nil {
		return nil, invalid("location", ErrMissingField)
	}
	x, err := numeric(raw.Location.X)
	if err != nil {
		return nil, invalid("location.x", err)
	}
	y, err := numeric(raw.Location.Y)
	if err != nil {
		return nil, invalid("location.y", err)
	}
	published, err := publishedAt(raw.PubMillis, now)
	if err != nil {
		return nil, invalid("pubMillis", err)
	}

	return &models.Alert{
		UUID:                     raw.UUID,
		PublishedAt:              published,
		LastUpdated:              lastUpdated(now, published),
		Active:                   true,
		Country:                  raw.Country,
		City:                     raw.City,
		Type:                     raw.Type,
		Subtype:                  raw.Subtype,
		Street:                   raw.Street,
		ReportRating:             raw.ReportRating.Ptr(),
		ReportByMunicipalityUser: raw.ReportByMunicipalityUser == "true",
		Confidence:               raw.Confidence.Ptr(),
		Reliability:              raw.Reliability.Ptr(),
		RoadType:                 raw.RoadType.Ptr(),
		Magvar:                   raw.Magvar.Ptr(),
		ReportDescription:        raw.ReportDescription,
		Location:                 models.Point{X: x, Y: y},
	}, nil
}

// CanonicalJam validates a raw jam and converts it to a row observed at now.
// The path must contain at least two distinct numeric points.
func CanonicalJam(raw *models.FeedJam, now time.Time) (*models.Jam, error) {
	uuid := raw.UUID.String()
	invalid := func(field string, err error) error {
		return &ValidationError{Kind: "jam", UUID: uuid, Field: field, Err: err}
	}

	if uuid == "" {
		return nil, invalid("uuid", ErrMissingField)
	}
	published, err := publishedAt(raw.PubMillis, now)
	if err != nil {
		return nil, invalid("pubMillis", err)
	}

	line := make(models.LineString, 0, len(raw.Line))
	for i, p := range raw.Line {
		x, err := numeric(p.X)
		if err != nil {
			return nil, invalid(fmt.Sprintf("line[%d].x", i), err)
		}
		y, err := numeric(p.Y)
		if err != nil {
			return nil, invalid(fmt.Sprintf("line[%d].y", i), err)
		}
		line = append(line, models.Point{X: x, Y: y})
	}
	if n := line.DistinctPoints(); n < 2 {
		return nil, &ValidationError{
			Kind:   "jam",
			UUID:   uuid,
			Field:  "line",
			Reason: fmt.Sprintf("%d distinct points, need at least 2", n),
			Err:    ErrInvalidGeometry,
		}
	}

	return &models.Jam{
		UUID:              uuid,
		PublishedAt:       published,
		LastUpdated:       lastUpdated(now, published),
		Active:            true,
		Country:           raw.Country,
		City:              raw.City,
		JamLevel:          raw.Level.Ptr(),
		SpeedKMH:          raw.SpeedKMH,
		JamLength:         raw.Length.Ptr(),
		TurnType:          raw.TurnType,
		EndNode:           raw.EndNode,
		StartNode:         raw.StartNode,
		Speed:             raw.Speed,
		RoadType:          raw.RoadType.Ptr(),
		Delay:             raw.Delay.Ptr(),
		Street:            raw.Street,
		BlockingAlertUUID: raw.BlockingAlertUUID,
		Line:              line,
	}, nil
}

func numeric(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, ErrMissingField
	}
	v, ok := models.NumericValue(raw)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotNumeric
	}
	return v, nil
}

// MaxFeedClockSkew is how far ahead of the observation time a record's
// pubMillis may be. Later timestamps are rejected: they would pin
// last_updated in the future and the row could never be swept.
const MaxFeedClockSkew = 24 * time.Hour

// publishedAt converts epoch milliseconds to a UTC time. The value must lie
// in [epoch, now+MaxFeedClockSkew], which every store can represent.
func publishedAt(raw json.RawMessage, now time.Time) (time.Time, error) {
	ms, err := numeric(raw)
	if err != nil {
		return time.Time{}, err
	}
	limit := now.Add(MaxFeedClockSkew).UnixMilli()
	if ms < 0 || ms > float64(limit) {
		return time.Time{}, ErrTimestampRange
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// lastUpdated keeps last_updated >= published_at when the feed clock runs
// ahead of ours.
func lastUpdated(now, published time.Time) time.Time {
	now = now.UTC()
	if now.Before(published) {
		return published
	}
	return now
}
