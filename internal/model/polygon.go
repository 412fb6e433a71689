package model

import "fmt"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lng)
	}
	return nil
}

// Polygon is an ordered vertex list. The closing edge is implied.
type Polygon []LatLng

// MinPolygonVertices is the smallest vertex count that encloses an area.
const MinPolygonVertices = 3

func (p Polygon) Closed() bool {
	return len(p) >= MinPolygonVertices
}

func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}
