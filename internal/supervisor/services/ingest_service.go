// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component with a non-blocking Start and a blocking Stop,
// such as *ingest.Orchestrator.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// IngestService runs the ingestion orchestrator under supervision.
type IngestService struct {
	component StartStopper
	name      string
}

// NewIngestService wraps the orchestrator.
func NewIngestService(component StartStopper) *IngestService {
	return &IngestService{component: component, name: "ingest-orchestrator"}
}

// Serve starts the component and stops it when ctx is canceled.
func (s *IngestService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", s.name, err)
	}
	<-ctx.Done()
	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("stop %s: %w", s.name, err)
	}
	return ctx.Err()
}

func (s *IngestService) String() string {
	return s.name
}
