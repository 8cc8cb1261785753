// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package partition

import (
	"testing"

	"github.com/tomtom215/roadwatch/internal/config"
	"github.com/tomtom215/roadwatch/internal/models"
)

func sampleDoc() *models.FeedDocument {
	return &models.FeedDocument{
		Alerts: []models.FeedAlert{
			{UUID: "a1", City: "Brno", Type: "JAM"},
			{UUID: "a2", City: "Blansko", Type: "ACCIDENT"},
			{UUID: "a3", City: "", Type: "HAZARD"},
			{UUID: "a4", City: "brno", Type: "ROAD_CLOSED"},
		},
		Jams: []models.FeedJam{
			{UUID: "j1", City: "Brno"},
			{UUID: "j2", City: "Hodonín"},
		},
	}
}

func alertIDs(doc *models.FeedDocument) []string {
	ids := make([]string, 0, len(doc.Alerts))
	for _, a := range doc.Alerts {
		ids = append(ids, a.UUID)
	}
	return ids
}

func jamIDs(doc *models.FeedDocument) []string {
	ids := make([]string, 0, len(doc.Jams))
	for _, j := range doc.Jams {
		ids = append(ids, j.UUID.String())
	}
	return ids
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		filter     config.FilterConfig
		wantAlerts []string
		wantJams   []string
	}{
		{
			name:       "all",
			filter:     config.FilterConfig{Op: OpAll},
			wantAlerts: []string{"a1", "a2", "a3", "a4"},
			wantJams:   []string{"j1", "j2"},
		},
		{
			name:       "empty op means all",
			filter:     config.FilterConfig{},
			wantAlerts: []string{"a1", "a2", "a3", "a4"},
			wantJams:   []string{"j1", "j2"},
		},
		{
			name:       "city eq Brno is case-sensitive",
			filter:     config.FilterConfig{Field: "city", Op: OpEq, Values: []string{"Brno"}},
			wantAlerts: []string{"a1"},
			wantJams:   []string{"j1"},
		},
		{
			name:       "city ne Brno includes missing city",
			filter:     config.FilterConfig{Field: "city", Op: OpNe, Values: []string{"Brno"}},
			wantAlerts: []string{"a2", "a3", "a4"},
			wantJams:   []string{"j2"},
		},
		{
			name:       "city in",
			filter:     config.FilterConfig{Field: "city", Op: OpIn, Values: []string{"Blansko", "Hodonín"}},
			wantAlerts: []string{"a2"},
			wantJams:   []string{"j2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := Compile(tt.filter)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			got := Split(sampleDoc(), pred)
			if ids := alertIDs(got); !equal(ids, tt.wantAlerts) {
				t.Errorf("alerts = %v, want %v", ids, tt.wantAlerts)
			}
			if ids := jamIDs(got); !equal(ids, tt.wantJams) {
				t.Errorf("jams = %v, want %v", ids, tt.wantJams)
			}
		})
	}
}

func TestSplitDisjointPartitions(t *testing.T) {
	doc := sampleDoc()
	brno, _ := Compile(config.FilterConfig{Field: "city", Op: OpEq, Values: []string{"Brno"}})
	rest, _ := Compile(config.FilterConfig{Field: "city", Op: OpNe, Values: []string{"Brno"}})

	a := Split(doc, brno)
	b := Split(doc, rest)
	if len(a.Alerts)+len(b.Alerts) != len(doc.Alerts) {
		t.Errorf("alerts not covered exactly once: %d + %d != %d", len(a.Alerts), len(b.Alerts), len(doc.Alerts))
	}
	if len(a.Jams)+len(b.Jams) != len(doc.Jams) {
		t.Errorf("jams not covered exactly once: %d + %d != %d", len(a.Jams), len(b.Jams), len(doc.Jams))
	}
}

func TestSplitDoesNotMutateInput(t *testing.T) {
	doc := sampleDoc()
	pred, _ := Compile(config.FilterConfig{Field: "city", Op: OpEq, Values: []string{"Brno"}})

	out := Split(doc, pred)
	out.Alerts[0].Street = "changed"

	if doc.Alerts[0].Street != "" {
		t.Error("Split output aliases input records")
	}
	if len(doc.Alerts) != 4 || len(doc.Jams) != 2 {
		t.Error("Split modified input collections")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter config.FilterConfig
	}{
		{"eq without value", config.FilterConfig{Field: "city", Op: OpEq}},
		{"ne with two values", config.FilterConfig{Field: "city", Op: OpNe, Values: []string{"a", "b"}}},
		{"in without field", config.FilterConfig{Op: OpIn, Values: []string{"a"}}},
		{"unknown op", config.FilterConfig{Field: "city", Op: "like", Values: []string{"B%"}}},
		{"alert-only field", config.FilterConfig{Field: "type", Op: OpNotIn, Values: []string{"JAM", "HAZARD"}}},
		{"unknown field", config.FilterConfig{Field: "region", Op: OpEq, Values: []string{"JMK"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.filter); err == nil {
				t.Error("Compile() expected error")
			}
		})
	}
}

func TestPartitionNewAndDescribe(t *testing.T) {
	p, err := New("jmk", config.PartitionConfig{
		Name:   "brno",
		Filter: config.FilterConfig{Field: "city", Op: OpEq, Values: []string{"Brno"}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Source != "jmk" || p.Name != "brno" {
		t.Errorf("partition = %+v", p)
	}
	if got := p.Describe(); got != "city eq Brno" {
		t.Errorf("Describe() = %q, want %q", got, "city eq Brno")
	}
	if got := len(p.Apply(sampleDoc()).Alerts); got != 1 {
		t.Errorf("Apply() alerts = %d, want 1", got)
	}

	if _, err := New("jmk", config.PartitionConfig{Name: "bad", Filter: config.FilterConfig{Op: "like"}}); err == nil {
		t.Error("New() expected error for unknown op")
	}
}
