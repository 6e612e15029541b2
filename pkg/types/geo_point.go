package types

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// GeoPoint is a WGS84 latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects coordinates outside the WGS84 range.
func (g GeoPoint) Validate() error {
	if math.IsNaN(g.Lat) || math.IsNaN(g.Lng) {
		return fmt.Errorf("geo point: coordinates must be numbers")
	}
	if g.Lat < -90 || g.Lat > 90 {
		return fmt.Errorf("geo point: latitude %f out of range", g.Lat)
	}
	if g.Lng < -180 || g.Lng > 180 {
		return fmt.Errorf("geo point: longitude %f out of range", g.Lng)
	}
	return nil
}

// DistanceKm returns the great-circle (haversine) distance between g and other.
func (g GeoPoint) DistanceKm(other GeoPoint) float64 {
	dLat := toRadians(other.Lat - g.Lat)
	dLng := toRadians(other.Lng - g.Lng)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(g.Lat))*math.Cos(toRadians(other.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
