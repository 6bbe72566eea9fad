package models

import (
	"fmt"
	"math"
)

// GeoPoint is a GeoJSON point stored as [longitude, latitude].
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a point from latitude and longitude in that order.
func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

func (p GeoPoint) Longitude() float64 { return p.Coordinates[0] }
func (p GeoPoint) Latitude() float64  { return p.Coordinates[1] }

// Coordinates is a caller-supplied lat/lng pair, both of which must be present.
type Coordinates struct {
	Latitude  *float64
	Longitude *float64
}

// Point validates both coordinates and converts them to a GeoPoint.
func (c Coordinates) Point() (GeoPoint, error) {
	if c.Latitude == nil || c.Longitude == nil {
		return GeoPoint{}, NewValidationError("Latitude and longitude are required")
	}
	if err := ValidateLatLng(*c.Latitude, *c.Longitude); err != nil {
		return GeoPoint{}, err
	}
	return NewGeoPoint(*c.Latitude, *c.Longitude), nil
}

// ValidateLatLng rejects coordinates outside the WGS84 range, NaN included.
func ValidateLatLng(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return NewValidationError("Latitude and longitude must be numbers")
	}
	if lat < -90 || lat > 90 {
		return NewValidationError(fmt.Sprintf("Latitude %v out of range [-90, 90]", lat))
	}
	if lng < -180 || lng > 180 {
		return NewValidationError(fmt.Sprintf("Longitude %v out of range [-180, 180]", lng))
	}
	return nil
}
