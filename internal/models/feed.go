// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package models

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// FeedDocument is one decoded snapshot of the upstream traffic feed.
type FeedDocument struct {
	Alerts []FeedAlert `json:"alerts"`
	Jams   []FeedJam   `json:"jams"`

	// Malformed counts records that could not be decoded at all and were dropped.
	Malformed int `json:"-"`
}

// FeedLocation is the point location of an alert. X is longitude, Y is latitude.
type FeedLocation struct {
	X json.RawMessage `json:"x"`
	Y json.RawMessage `json:"y"`
}

// FeedAlert is a raw driver-reported alert.
type FeedAlert struct {
	UUID                     string          `json:"uuid"`
	PubMillis                json.RawMessage `json:"pubMillis"`
	Location                 *FeedLocation   `json:"location"`
	Country                  string          `json:"country,omitempty"`
	City                     string          `json:"city,omitempty"`
	Type                     string          `json:"type,omitempty"`
	Subtype                  string          `json:"subtype,omitempty"`
	Street                   string          `json:"street,omitempty"`
	ReportRating             FlexInt         `json:"reportRating,omitempty"`
	ReportByMunicipalityUser string          `json:"reportByMunicipalityUser,omitempty"`
	Confidence               FlexInt         `json:"confidence,omitempty"`
	Reliability              FlexInt         `json:"reliability,omitempty"`
	RoadType                 FlexInt         `json:"roadType,omitempty"`
	Magvar                   FlexInt         `json:"magvar,omitempty"`
	ReportDescription        string          `json:"reportDescription,omitempty"`
}

// Attribute returns the string value of a filterable attribute.
func (a *FeedAlert) Attribute(name string) string {
	switch name {
	case "city":
		return a.City
	case "country":
		return a.Country
	case "street":
		return a.Street
	case "type":
		return a.Type
	default:
		return ""
	}
}

// FeedPoint is one vertex of a jam path.
type FeedPoint struct {
	X json.RawMessage `json:"x"`
	Y json.RawMessage `json:"y"`
}

// FeedSegment is one directed edge of a jam path.
type FeedSegment struct {
	FromNode  *int64 `json:"fromNode,omitempty"`
	ToNode    *int64 `json:"toNode,omitempty"`
	ID        *int64 `json:"ID,omitempty"`
	IsForward *bool  `json:"isForward,omitempty"`
}

// FeedJam is a raw traffic jam record.
type FeedJam struct {
	UUID              FlexString      `json:"uuid"`
	ID                *int64          `json:"id,omitempty"`
	PubMillis         json.RawMessage `json:"pubMillis"`
	Line              []FeedPoint     `json:"line"`
	Country           string          `json:"country,omitempty"`
	City              string          `json:"city,omitempty"`
	Level             FlexInt         `json:"level,omitempty"`
	SpeedKMH          *float64        `json:"speedKMH,omitempty"`
	Length            FlexInt         `json:"length,omitempty"`
	TurnType          string          `json:"turnType,omitempty"`
	EndNode           string          `json:"endNode,omitempty"`
	StartNode         string          `json:"startNode,omitempty"`
	Speed             *float64        `json:"speed,omitempty"`
	RoadType          FlexInt         `json:"roadType,omitempty"`
	Delay             FlexInt         `json:"delay,omitempty"`
	Street            string          `json:"street,omitempty"`
	BlockingAlertUUID string          `json:"blockingAlertUuid,omitempty"`
	Segments          []FeedSegment   `json:"segments,omitempty"`
}

// Attribute returns the string value of a filterable attribute.
func (j *FeedJam) Attribute(name string) string {
	switch name {
	case "city":
		return j.City
	case "country":
		return j.Country
	case "street":
		return j.Street
	default:
		return ""
	}
}

// FlexString decodes either a JSON string or a JSON number into a string.
// Jam identifiers arrive as numbers from some feed deployments.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the decoded value.
func (f FlexString) String() string {
	return string(f)
}

// NumericValue reports the value of raw if it is a JSON number.
// Strings, booleans, null and missing values are rejected, even when a
// string would parse as a number.
func NumericValue(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, false
	}
	if c := s[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return 0, false
	}
	return v, true
}

// FlexInt is an optional integer attribute decoded leniently. Fractional
// numbers are rounded and numeric strings are accepted. Null, non-numeric
// and out-of-range values leave it unset instead of failing the record.
type FlexInt struct {
	Value int
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler. It never returns an error.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
		return nil
	}
	*f = FlexInt{Value: int(math.Round(v)), Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.Value)), nil
}

// Ptr returns the value, or nil when unset.
func (f FlexInt) Ptr() *int {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// Int returns a set FlexInt, for building feed records in code.
func Int(v int) FlexInt {
	return FlexInt{Value: v, Valid: true}
}
