// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package feed

import "fmt"

// Fetch failure kinds.
const (
	KindTransport = "transport"
	KindStatus    = "status"
	KindDecode    = "decode"
	KindRejected  = "rejected"
)

// FetchError reports a failed feed fetch: a network failure, a non-2xx
// response, an undecodable document or a request rejected by the circuit
// breaker. It aborts the source for the current cycle only.
type FetchError struct {
	Source     string
	URL        string
	Kind       string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("feed %s: unexpected status %d: %s", e.Source, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("feed %s: %s: %v", e.Source, e.Kind, e.Err)
	default:
		return fmt.Sprintf("feed %s: %s failure", e.Source, e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Reason returns the failure kind for metrics labels.
func (e *FetchError) Reason() string {
	return e.Kind
}
