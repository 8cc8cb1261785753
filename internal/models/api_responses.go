// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package models

import "time"

// APIResponse is the envelope for every JSON response of the HTTP API.
//
// Success:
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
//
// Failure:
//
//	{"status":"error","data":null,"metadata":{...},"error":{"code":"...","message":"..."}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a machine-readable error code with a human-readable message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatisticsResponse is the data of GET /api/v1/statistics.
type StatisticsResponse struct {
	Partition  string            `json:"partition"`
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
	Statistics []HourlyStatistic `json:"statistics"`
}

// BackfillResponse is the data of POST /api/v1/statistics/backfill.
type BackfillResponse struct {
	Partition  string            `json:"partition"`
	From       time.Time         `json:"from"`
	Hours      int               `json:"hours"`
	Statistics []HourlyStatistic `json:"statistics"`
}
