// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package events

import (
	"context"
	"strings"
)

// Message is one serialized report ready for a sink.
type Message struct {
	ID        string
	Partition string
	Payload   []byte
}

// Sink delivers messages to one downstream system.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// routeToken makes a partition name safe as one level of a NATS subject
// or MQTT topic.
func routeToken(partition string) string {
	if partition == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '/', '*', '>', '+', '#', ' ', '\t':
			return '_'
		}
		return r
	}, partition)
}
