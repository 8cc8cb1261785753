// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/metrics"
	"github.com/tomtom215/roadwatch/internal/models"
)

const (
	// maxErrorBodySize limits how much of an error response is kept.
	maxErrorBodySize = 64 * 1024

	// maxDocumentSize bounds a single feed document.
	maxDocumentSize = 64 << 20

	defaultTimeout = 30 * time.Second
)

// Fetcher returns one snapshot of a traffic feed.
type Fetcher interface {
	Fetch(ctx context.Context) (*models.FeedDocument, error)
	Name() string
}

// Config configures a feed client.
type Config struct {
	Name    string
	URL     string
	Timeout time.Duration
	// RateLimit is the maximum fetches per second; 0 disables limiting.
	RateLimit float64
	// HTTPClient overrides the default client. Its timeout is left as is.
	HTTPClient *http.Client
}

// Client fetches and decodes a traffic feed over HTTP.
// It performs no retries; the next scheduled cycle is the retry.
type Client struct {
	name    string
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a feed client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		name:    cfg.Name,
		url:     cfg.URL,
		client:  httpClient,
		limiter: limiter,
	}
}

// Name returns the feed source name.
func (c *Client) Name() string {
	return c.name
}

// Fetch retrieves the feed document. A record that cannot be decoded is
// dropped and counted in FeedDocument.Malformed; the rest of the document
// is still returned.
func (c *Client) Fetch(ctx context.Context) (*models.FeedDocument, error) {
	start := time.Now()
	doc, err := c.fetch(ctx)

	malformed := 0
	if doc != nil {
		malformed = doc.Malformed
	}
	metrics.RecordFeedFetch(c.name, time.Since(start), malformed, err)

	if err != nil {
		return nil, err
	}

	logging.Debug().
		Str("feed", c.name).
		Int("alerts", len(doc.Alerts)).
		Int("jams", len(doc.Jams)).
		Int("malformed", doc.Malformed).
		Dur("duration", time.Since(start)).
		Msg("Fetched feed")

	return doc, nil
}

func (c *Client) fetch(ctx context.Context) (*models.FeedDocument, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fetchError(KindTransport, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, c.fetchError(KindTransport, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.fetchError(KindTransport, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Source:     c.name,
			URL:        c.url,
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Body:       string(readBodyForError(resp.Body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, c.fetchError(KindTransport, fmt.Errorf("failed to read body: %w", err))
	}

	doc, err := Decode(body)
	if err != nil {
		return nil, c.fetchError(KindDecode, err)
	}
	return doc, nil
}

func (c *Client) fetchError(kind string, err error) *FetchError {
	return &FetchError{Source: c.name, URL: c.url, Kind: kind, Err: err}
}

// rawDocument holds the top-level collections before per-record decoding.
type rawDocument struct {
	Alerts []json.RawMessage `json:"alerts"`
	Jams   []json.RawMessage `json:"jams"`
}

// Decode parses a feed document. The top level must be a JSON object;
// missing collections decode as empty. Each record is decoded on its own
// so that one bad record does not discard the document.
func Decode(body []byte) (*models.FeedDocument, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("feed document is not a JSON object")
	}

	var raw rawDocument
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode feed document: %w", err)
	}

	doc := &models.FeedDocument{
		Alerts: make([]models.FeedAlert, 0, len(raw.Alerts)),
		Jams:   make([]models.FeedJam, 0, len(raw.Jams)),
	}

	for _, r := range raw.Alerts {
		var a models.FeedAlert
		if err := json.Unmarshal(r, &a); err != nil {
			doc.Malformed++
			logging.Debug().Err(err).Msg("Dropping undecodable alert record")
			continue
		}
		doc.Alerts = append(doc.Alerts, a)
	}

	for _, r := range raw.Jams {
		var j models.FeedJam
		if err := json.Unmarshal(r, &j); err != nil {
			doc.Malformed++
			logging.Debug().Err(err).Msg("Dropping undecodable jam record")
			continue
		}
		doc.Jams = append(doc.Jams, j)
	}

	return doc, nil
}

// readBodyForError reads at most maxErrorBodySize bytes of a response body.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
