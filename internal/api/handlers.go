// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/roadwatch/internal/ingest"
	"github.com/tomtom215/roadwatch/internal/logging"
	"github.com/tomtom215/roadwatch/internal/models"
)

// DefaultStatisticsWindow is the range served when from/to are omitted.
const DefaultStatisticsWindow = 24 * time.Hour

// readyTimeout bounds the store pings behind /readyz.
const readyTimeout = 5 * time.Second

// Ingestor is the part of the orchestrator the API drives.
type Ingestor interface {
	Partitions() []ingest.PartitionInfo
	LastCycleTime() time.Time
	TriggerCycle() error
	Backfill(ctx context.Context, partition string, from time.Time) ([]models.HourlyStatistic, error)
	Statistics(ctx context.Context, partition string, from, to time.Time) ([]models.HourlyStatistic, error)
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers.
type Handler struct {
	ingestor  Ingestor
	startTime time.Time
	now       func() time.Time
}

// NewHandler creates handlers over an ingestor.
func NewHandler(ingestor Ingestor) *Handler {
	return &Handler{
		ingestor:  ingestor,
		startTime: time.Now(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PartitionsResponse is the data of GET /api/v1/partitions.
type PartitionsResponse struct {
	Partitions    []ingest.PartitionInfo `json:"partitions"`
	LastCycleTime *time.Time             `json:"last_cycle_time"`
}

// HealthResponse is the data of /healthz and /readyz.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Error         string  `json:"error,omitempty"`
}

// Healthz reports that the process is serving.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, HealthResponse{
		Status:        "alive",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// Readyz pings every store.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.ingestor.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status: "error",
			Data: HealthResponse{
				Status:        "unavailable",
				UptimeSeconds: time.Since(h.startTime).Seconds(),
				Error:         err.Error(),
			},
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    &models.APIError{Code: codeStoreUnavailable, Message: "one or more stores are unreachable"},
		})
		return
	}

	respondData(w, http.StatusOK, HealthResponse{
		Status:        "ready",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}, start)
}

// Partitions lists configured partitions.
func (h *Handler) Partitions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := PartitionsResponse{Partitions: h.ingestor.Partitions()}
	if resp.Partitions == nil {
		resp.Partitions = []ingest.PartitionInfo{}
	}
	if last := h.ingestor.LastCycleTime(); !last.IsZero() {
		resp.LastCycleTime = &last
	}
	respondData(w, http.StatusOK, resp, start)
}

// Statistics returns hourly statistics for one partition.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	partitionName, ok := h.resolvePartition(w, q.Get("partition"))
	if !ok {
		return
	}

	toParam, err := ingest.ParseBackfillStart(q.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	fromParam, err := ingest.ParseBackfillStart(q.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	to := h.now()
	if toParam != nil {
		to = *toParam
	}
	from := to.Add(-DefaultStatisticsWindow)
	if fromParam != nil {
		from = *fromParam
	}
	if !from.Before(to) {
		respondError(w, http.StatusBadRequest, codeValidation, "from must be before to", nil)
		return
	}

	stats, err := h.ingestor.Statistics(r.Context(), partitionName, from, to)
	if err != nil {
		h.respondIngestError(w, err)
		return
	}
	if stats == nil {
		stats = []models.HourlyStatistic{}
	}

	respondData(w, http.StatusOK, models.StatisticsResponse{
		Partition:  partitionName,
		From:       from,
		To:         to,
		Statistics: stats,
	}, start)
}

// TriggerIngest requests an immediate polling cycle.
func (h *Handler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.ingestor.TriggerCycle(); err != nil {
		if errors.Is(err, ingest.ErrNotRunning) {
			respondError(w, http.StatusServiceUnavailable, codeNotRunning, "ingestion is not running", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to trigger cycle", err)
		return
	}

	logging.Ctx(r.Context()).Info().Msg("Ingestion cycle triggered via API")
	respondData(w, http.StatusAccepted, map[string]string{"status": "triggered"}, start)
}

// Backfill recomputes statistics from the given hour up to the current one.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	partitionName, ok := h.resolvePartition(w, q.Get("partition"))
	if !ok {
		return
	}

	from, err := ingest.ParseBackfillStart(q.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	if from == nil {
		respondError(w, http.StatusBadRequest, codeValidation, "from is required", nil)
		return
	}

	stats, err := h.ingestor.Backfill(r.Context(), partitionName, *from)
	if err != nil {
		h.respondIngestError(w, err)
		return
	}
	if stats == nil {
		stats = []models.HourlyStatistic{}
	}

	logging.Ctx(r.Context()).Info().
		Str("partition", sanitizeLogValue(partitionName)).
		Time("from", *from).
		Int("hours", len(stats)).
		Msg("Statistics backfill requested via API")

	respondData(w, http.StatusOK, models.BackfillResponse{
		Partition:  partitionName,
		From:       from.Truncate(time.Hour),
		Hours:      len(stats),
		Statistics: stats,
	}, start)
}

// resolvePartition applies the single-partition default. It writes the
// error response itself and returns false when the request cannot proceed.
func (h *Handler) resolvePartition(w http.ResponseWriter, name string) (string, bool) {
	if name != "" {
		return name, true
	}
	parts := h.ingestor.Partitions()
	if len(parts) == 1 {
		return parts[0].Name, true
	}
	respondError(w, http.StatusBadRequest, codeValidation, "partition is required", nil)
	return "", false
}

func (h *Handler) respondIngestError(w http.ResponseWriter, err error) {
	var cfgErr *ingest.ConfigError
	switch {
	case errors.Is(err, ingest.ErrUnknownPartition):
		respondError(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.As(err, &cfgErr):
		respondError(w, http.StatusBadRequest, codeValidation, cfgErr.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, codeDatabase, "statistics query failed", err)
	}
}
