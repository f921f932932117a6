// Package geo provides coordinates and map projections for the isochrone workbench.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange indicates a coordinate component outside WGS84 bounds.
var ErrOutOfRange = errors.New("coordinate out of range")

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Pair returns the coordinate in GeoJSON [lon, lat] order.
func (c Coordinate) Pair() [2]float64 {
	return [2]float64{c.Lon, c.Lat}
}

// Validate checks that the coordinate lies within WGS84 bounds.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f: %w", c.Lat, ErrOutOfRange)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f: %w", c.Lon, ErrOutOfRange)
	}
	return nil
}

// Round returns the coordinate rounded to the given number of decimals.
func (c Coordinate) Round(decimals int) Coordinate {
	return Coordinate{Lon: RoundTo(c.Lon, decimals), Lat: RoundTo(c.Lat, decimals)}
}

// RoundTo rounds v half away from zero to the given number of decimals.
func RoundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// WrapLon brings a longitude from a repeated world copy back into
// [-180, 180]. In-range values are returned unchanged.
func WrapLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	m := math.Mod(lon+180, 360)
	if m < 0 {
		m += 360
	}
	return m - 180
}
