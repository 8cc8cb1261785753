// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package testinfra

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// MockFeedServer serves a feed document over HTTP and counts requests.
// The document can be swapped between polls.
type MockFeedServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	body     []byte
	status   int
	requests atomic.Int64
}

// NewMockFeedServer starts a server returning body with status 200. It is
// closed when the test ends.
func NewMockFeedServer(t *testing.T, body string) *MockFeedServer {
	t.Helper()

	m := &MockFeedServer{body: []byte(body), status: http.StatusOK}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)

		m.mu.Lock()
		status, body := m.status, m.body
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(body) //nolint:errcheck
	}))
	t.Cleanup(m.Server.Close)
	return m
}

// URL returns the server URL.
func (m *MockFeedServer) URL() string {
	return m.Server.URL
}

// Serve replaces the response.
func (m *MockFeedServer) Serve(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.body = []byte(body)
}

// Requests returns how many requests have been served.
func (m *MockFeedServer) Requests() int64 {
	return m.requests.Load()
}
