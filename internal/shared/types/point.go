package types

import (
	"encoding/json"
	"fmt"
)

// Point is a geographic location stored as a GeoJSON-style
// [longitude, latitude] pair.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// NewPoint validates and constructs a Point.
func NewPoint(lng, lat float64) (Point, error) {
	p := Point{Lng: lng, Lat: lat}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks that the coordinates are within WGS84 bounds.
func (p Point) Validate() error {
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lng)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	return nil
}

// geoJSONPoint is the wire form used by clients: a typed
// two-element coordinate array.
type geoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// MarshalJSON renders the point as {"type":"Point","coordinates":[lng,lat]}.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPoint{
		Type:        "Point",
		Coordinates: []float64{p.Lng, p.Lat},
	})
}

// UnmarshalJSON accepts the GeoJSON form and enforces the
// two-element coordinate invariant.
func (p *Point) UnmarshalJSON(data []byte) error {
	var g geoJSONPoint
	if err := json.Unmarshal(data, &g); err != nil {
		return err
	}
	if g.Type != "" && g.Type != "Point" {
		return fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	if len(g.Coordinates) != 2 {
		return fmt.Errorf("coordinates must be a [longitude, latitude] pair")
	}
	p.Lng = g.Coordinates[0]
	p.Lat = g.Coordinates[1]
	return p.Validate()
}
