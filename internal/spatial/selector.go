// Package spatial selects records by a user-drawn polygon and tracks the
// polygon drawing mode.
package spatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"tree-census/internal/model"
)

// Containment decides how a point is tested against a polygon.
type Containment string

const (
	// ContainPolygon is true point-in-polygon with inclusive boundaries.
	ContainPolygon Containment = "polygon"
	// ContainBoundingBox tests against the polygon's enclosing rectangle only.
	// It accepts points outside concave or slanted edges.
	ContainBoundingBox Containment = "bbox"
)

func ParseContainment(raw string) (Containment, error) {
	switch Containment(raw) {
	case "", ContainPolygon:
		return ContainPolygon, nil
	case ContainBoundingBox:
		return ContainBoundingBox, nil
	}
	return "", fmt.Errorf("unknown containment mode %q", raw)
}

// Ring converts polygon to a closed orb ring in lng/lat order.
func Ring(polygon model.Polygon) orb.Ring {
	ring := make(orb.Ring, 0, len(polygon)+1)
	for _, v := range polygon {
		ring = append(ring, orb.Point{v.Lng, v.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

type matcher func(orb.Point) bool

func newMatcher(polygon model.Polygon, mode Containment) matcher {
	ring := Ring(polygon)
	if mode == ContainBoundingBox {
		bound := ring.Bound()
		return bound.Contains
	}
	return func(p orb.Point) bool {
		return planar.RingContains(ring, p)
	}
}

// SelectPositions returns the indexes of candidates inside polygon, in order.
// A polygon with fewer than three vertices selects every candidate.
func SelectPositions(polygon model.Polygon, candidates []model.Record, mode Containment) []int {
	out := make([]int, 0, len(candidates))
	if !polygon.Closed() {
		for i := range candidates {
			out = append(out, i)
		}
		return out
	}

	inside := newMatcher(polygon, mode)
	for i, rec := range candidates {
		if !rec.HasCoordinates() {
			continue
		}
		if inside(orb.Point{*rec.Lng, *rec.Lat}) {
			out = append(out, i)
		}
	}
	return out
}

// Select returns the candidates inside polygon, preserving candidate order.
func Select(polygon model.Polygon, candidates []model.Record, mode Containment) []model.Record {
	if !polygon.Closed() {
		return candidates
	}
	positions := SelectPositions(polygon, candidates, mode)
	out := make([]model.Record, 0, len(positions))
	for _, i := range positions {
		out = append(out, candidates[i])
	}
	return out
}

// Contains reports whether a single point lies inside polygon.
func Contains(polygon model.Polygon, point model.LatLng, mode Containment) bool {
	if !polygon.Closed() {
		return false
	}
	return newMatcher(polygon, mode)(orb.Point{point.Lng, point.Lat})
}
