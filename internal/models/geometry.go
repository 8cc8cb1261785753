// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package models

import (
	"strconv"
	"strings"
)

// SRID is the spatial reference of every stored geometry (WGS84).
const SRID = 4326

// Point is a WGS84 coordinate pair. X is longitude, Y is latitude.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WKT renders the point as well-known text.
func (p Point) WKT() string {
	return "POINT (" + formatCoord(p.X) + " " + formatCoord(p.Y) + ")"
}

// LineString is an ordered path of points.
type LineString []Point

// WKT renders the line as well-known text.
func (l LineString) WKT() string {
	var b strings.Builder
	b.WriteString("LINESTRING (")
	for i, p := range l {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatCoord(p.X))
		b.WriteByte(' ')
		b.WriteString(formatCoord(p.Y))
	}
	b.WriteByte(')')
	return b.String()
}

// DistinctPoints returns the number of distinct coordinate pairs in the line.
func (l LineString) DistinctPoints() int {
	seen := make(map[Point]struct{}, len(l))
	for _, p := range l {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
