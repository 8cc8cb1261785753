// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package models

import "time"

// Alert is the canonical row for a driver-reported road event.
//
// The natural key is (UUID, PublishedAt). Once a row exists only LastUpdated
// and Active change; descriptive fields keep their first observed values.
type Alert struct {
	UUID                     string    `json:"uuid"`
	PublishedAt              time.Time `json:"published_at"`
	LastUpdated              time.Time `json:"last_updated"`
	Active                   bool      `json:"active"`
	Country                  string    `json:"country,omitempty"`
	City                     string    `json:"city,omitempty"`
	Type                     string    `json:"type,omitempty"`
	Subtype                  string    `json:"subtype,omitempty"`
	Street                   string    `json:"street,omitempty"`
	ReportRating             *int      `json:"report_rating,omitempty"`
	ReportByMunicipalityUser bool      `json:"report_by_municipality_user"`
	Confidence               *int      `json:"confidence,omitempty"`
	Reliability              *int      `json:"reliability,omitempty"`
	RoadType                 *int      `json:"road_type,omitempty"`
	Magvar                   *int      `json:"magvar,omitempty"`
	ReportDescription        string    `json:"report_description,omitempty"`
	Location                 Point     `json:"location"`
}

// Jam is the canonical row for a traffic jam.
//
// BlockingAlertUUID is a weak reference to an alert uuid. The referenced
// alert may not exist locally and nothing enforces it.
type Jam struct {
	UUID              string     `json:"uuid"`
	PublishedAt       time.Time  `json:"published_at"`
	LastUpdated       time.Time  `json:"last_updated"`
	Active            bool       `json:"active"`
	Country           string     `json:"country,omitempty"`
	City              string     `json:"city,omitempty"`
	JamLevel          *int       `json:"jam_level,omitempty"`
	SpeedKMH          *float64   `json:"speed_kmh,omitempty"`
	JamLength         *int       `json:"jam_length,omitempty"`
	TurnType          string     `json:"turn_type,omitempty"`
	EndNode           string     `json:"end_node,omitempty"`
	StartNode         string     `json:"start_node,omitempty"`
	Speed             *float64   `json:"speed,omitempty"`
	RoadType          *int       `json:"road_type,omitempty"`
	Delay             *int       `json:"delay,omitempty"`
	Street            string     `json:"street,omitempty"`
	BlockingAlertUUID string     `json:"blocking_alert_uuid,omitempty"`
	Line              LineString `json:"jam_line"`
}

// Segment is one directed edge extracted from a jam. Segments are append-only.
type Segment struct {
	JamID     *int64 `json:"jam_id,omitempty"`
	FromNode  *int64 `json:"from_node,omitempty"`
	ToNode    *int64 `json:"to_node,omitempty"`
	SegmentID *int64 `json:"segment_id,omitempty"`
	IsForward *bool  `json:"is_forward,omitempty"`
}
