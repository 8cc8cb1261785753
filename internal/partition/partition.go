// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package partition

import (
	"fmt"

	"github.com/tomtom215/roadwatch/internal/config"
	"github.com/tomtom215/roadwatch/internal/models"
)

// Filter operators.
const (
	OpAll   = "all"
	OpEq    = "eq"
	OpNe    = "ne"
	OpIn    = "in"
	OpNotIn = "not_in"
)

// Fields lists the attributes a filter may compare. Each one exists on
// both alerts and jams, so a partition never splits the two kinds
// differently.
var Fields = map[string]struct{}{
	"city":    {},
	"country": {},
	"street":  {},
}

// Record is a feed record with filterable string attributes.
type Record interface {
	Attribute(name string) string
}

// Predicate selects the records belonging to a partition.
type Predicate func(Record) bool

// All matches every record.
func All(Record) bool { return true }

// Compile turns a filter into a predicate. Comparisons are exact and
// case-sensitive.
func Compile(f config.FilterConfig) (Predicate, error) {
	switch f.Op {
	case "", OpAll:
		return All, nil
	case OpEq, OpNe:
		if f.Field == "" || len(f.Values) != 1 {
			return nil, fmt.Errorf("filter %q needs a field and exactly one value", f.Op)
		}
		if err := checkField(f.Field); err != nil {
			return nil, err
		}
		field, want := f.Field, f.Values[0]
		if f.Op == OpEq {
			return func(r Record) bool { return r.Attribute(field) == want }, nil
		}
		return func(r Record) bool { return r.Attribute(field) != want }, nil
	case OpIn, OpNotIn:
		if f.Field == "" || len(f.Values) == 0 {
			return nil, fmt.Errorf("filter %q needs a field and at least one value", f.Op)
		}
		if err := checkField(f.Field); err != nil {
			return nil, err
		}
		field := f.Field
		set := make(map[string]struct{}, len(f.Values))
		for _, v := range f.Values {
			set[v] = struct{}{}
		}
		member := func(r Record) bool {
			_, ok := set[r.Attribute(field)]
			return ok
		}
		if f.Op == OpIn {
			return member, nil
		}
		return func(r Record) bool { return !member(r) }, nil
	default:
		return nil, fmt.Errorf("unknown filter op %q", f.Op)
	}
}

func checkField(field string) error {
	if _, ok := Fields[field]; !ok {
		return fmt.Errorf("unsupported filter field %q", field)
	}
	return nil
}

// Split returns the alerts and jams of doc that match pred. The input
// document is not modified; record values are copied into new slices.
func Split(doc *models.FeedDocument, pred Predicate) *models.FeedDocument {
	out := &models.FeedDocument{
		Alerts: make([]models.FeedAlert, 0, len(doc.Alerts)),
		Jams:   make([]models.FeedJam, 0, len(doc.Jams)),
	}
	for i := range doc.Alerts {
		if pred(&doc.Alerts[i]) {
			out.Alerts = append(out.Alerts, doc.Alerts[i])
		}
	}
	for i := range doc.Jams {
		if pred(&doc.Jams[i]) {
			out.Jams = append(out.Jams, doc.Jams[i])
		}
	}
	return out
}

// Partition is a named slice of a feed with its compiled predicate.
type Partition struct {
	Name      string
	Source    string
	Filter    config.FilterConfig
	Predicate Predicate
}

// New compiles a partition from configuration.
func New(source string, cfg config.PartitionConfig) (*Partition, error) {
	pred, err := Compile(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", cfg.Name, err)
	}
	return &Partition{
		Name:      cfg.Name,
		Source:    source,
		Filter:    cfg.Filter,
		Predicate: pred,
	}, nil
}

// Apply splits doc with the partition's predicate.
func (p *Partition) Apply(doc *models.FeedDocument) *models.FeedDocument {
	return Split(doc, p.Predicate)
}

// Describe renders the filter for logs and the API, e.g. "city eq Brno".
func (p *Partition) Describe() string {
	f := p.Filter
	switch f.Op {
	case "", OpAll:
		return OpAll
	case OpEq, OpNe:
		return fmt.Sprintf("%s %s %s", f.Field, f.Op, f.Values[0])
	default:
		return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Values)
	}
}
