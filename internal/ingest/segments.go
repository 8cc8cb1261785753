// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package ingest

import "github.com/tomtom215/roadwatch/internal/models"

// ExtractSegments derives one segment row per element of each jam's
// segments list, in feed order. It reads the raw batch, so segments of a
// jam rejected for its geometry are still emitted. Jams without segments
// emit nothing.
func ExtractSegments(jams []models.FeedJam) []models.Segment {
	var out []models.Segment
	for i := range jams {
		jam := &jams[i]
		for _, s := range jam.Segments {
			out = append(out, models.Segment{
				JamID:     jam.ID,
				FromNode:  s.FromNode,
				ToNode:    s.ToNode,
				SegmentID: s.ID,
				IsForward: s.IsForward,
			})
		}
	}
	return out
}
