// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleDocument = `{
  "alerts": [
    {"uuid": "a-1", "pubMillis": 1700000000000, "location": {"x": 16.60, "y": 49.19}, "city": "Brno", "type": "ACCIDENT", "reportByMunicipalityUser": "false"},
    {"uuid": "a-2", "pubMillis": 1700000060000, "location": {"x": "16.61", "y": 49.20}, "city": "Blansko"}
  ],
  "jams": [
    {"uuid": 987654, "id": 987654, "pubMillis": 1700000000000, "city": "Brno", "level": 3, "speedKMH": 12.5,
     "line": [{"x": 16.60, "y": 49.19}, {"x": 16.61, "y": 49.20}],
     "segments": [{"fromNode": 1, "toNode": 2, "ID": 10, "isForward": true}]}
  ]
}`

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetch(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, sampleDocument)
	c := NewClient(Config{Name: "jmk", URL: srv.URL, Timeout: 5 * time.Second})

	doc, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(doc.Alerts) != 2 {
		t.Errorf("alerts = %d, want 2", len(doc.Alerts))
	}
	if len(doc.Jams) != 1 {
		t.Fatalf("jams = %d, want 1", len(doc.Jams))
	}
	if doc.Malformed != 0 {
		t.Errorf("malformed = %d, want 0", doc.Malformed)
	}
	if got := doc.Jams[0].UUID.String(); got != "987654" {
		t.Errorf("jam uuid = %q, want 987654", got)
	}
	if len(doc.Jams[0].Segments) != 1 {
		t.Errorf("segments = %d, want 1", len(doc.Jams[0].Segments))
	}
	// The string coordinate survives decoding for the upsert engine to reject.
	if got := string(doc.Alerts[1].Location.X); got != `"16.61"` {
		t.Errorf("raw x = %s, want quoted string", got)
	}
	if c.Name() != "jmk" {
		t.Errorf("Name() = %q, want jmk", c.Name())
	}
}

func TestClientFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind string
	}{
		{"server error", http.StatusInternalServerError, "upstream down", KindStatus},
		{"not found", http.StatusNotFound, "", KindStatus},
		{"array document", http.StatusOK, `[1, 2, 3]`, KindDecode},
		{"truncated document", http.StatusOK, `{"alerts": [`, KindDecode},
		{"alerts not an array", http.StatusOK, `{"alerts": "nope"}`, KindDecode},
		{"empty body", http.StatusOK, ``, KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body)
			c := NewClient(Config{Name: "test", URL: srv.URL})

			_, err := c.Fetch(context.Background())
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Fetch() error = %v, want *FetchError", err)
			}
			if fe.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", fe.Kind, tt.wantKind)
			}
			if tt.wantKind == KindStatus && fe.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", fe.StatusCode, tt.status)
			}
		})
	}
}

func TestClientFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{Name: "gone", URL: url, Timeout: time.Second})
	_, err := c.Fetch(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindTransport {
		t.Fatalf("Fetch() error = %v, want transport FetchError", err)
	}
}

func TestClientFetchContextCanceled(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, sampleDocument)
	c := NewClient(Config{Name: "test", URL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestClientFetchErrorBodyTruncated(t *testing.T) {
	srv := newTestServer(t, http.StatusBadGateway, strings.Repeat("x", maxErrorBodySize+100))
	c := NewClient(Config{Name: "test", URL: srv.URL})

	_, err := c.Fetch(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if !strings.HasSuffix(fe.Body, "(truncated)") {
		t.Error("error body should be truncated")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantAlerts    int
		wantJams      int
		wantMalformed int
	}{
		{"missing collections", `{}`, 0, 0, 0},
		{"null collections", `{"alerts": null, "jams": null}`, 0, 0, 0},
		{"alert with wrong field type", `{"alerts": [{"uuid": 5}, {"uuid": "ok"}]}`, 1, 0, 1},
		{"jam with bad line", `{"jams": [{"uuid": "j", "line": "x"}, {"uuid": "k", "line": []}]}`, 0, 1, 1},
		{"jam with bool uuid", `{"jams": [{"uuid": true}]}`, 0, 0, 1},
		{"fractional optional integers", `{"alerts": [{"uuid": "a", "magvar": 12.5, "confidence": "2"}], "jams": [{"uuid": "j", "delay": 61.7, "length": null}]}`, 1, 1, 0},
		{"extra keys ignored", `{"irregularities": [], "alerts": [{"uuid": "a"}], "startTime": "x"}`, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.body))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(doc.Alerts) != tt.wantAlerts {
				t.Errorf("alerts = %d, want %d", len(doc.Alerts), tt.wantAlerts)
			}
			if len(doc.Jams) != tt.wantJams {
				t.Errorf("jams = %d, want %d", len(doc.Jams), tt.wantJams)
			}
			if doc.Malformed != tt.wantMalformed {
				t.Errorf("malformed = %d, want %d", doc.Malformed, tt.wantMalformed)
			}
			if doc.Alerts == nil || doc.Jams == nil {
				t.Error("collections should never be nil")
			}
		})
	}
}

func TestFetchErrorMessage(t *testing.T) {
	err := &FetchError{Source: "jmk", Kind: KindStatus, StatusCode: 503, Body: "busy"}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Error() = %q, want status code", err.Error())
	}
	inner := errors.New("dial tcp: refused")
	err = &FetchError{Source: "jmk", Kind: KindTransport, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("FetchError should unwrap to its cause")
	}
	if err.Reason() != KindTransport {
		t.Errorf("Reason() = %q, want %q", err.Reason(), KindTransport)
	}
}
