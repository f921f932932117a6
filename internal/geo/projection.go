package geo

import "math"

// Planar is a position in a projection's planar coordinate system.
type Planar struct {
	X float64
	Y float64
}

// Projection converts between geographic and planar coordinates.
type Projection interface {
	// Code is the projection identifier, e.g. "EPSG:3857".
	Code() string
	FromLonLat(c Coordinate) Planar
	ToLonLat(p Planar) Coordinate
}

// earthRadius is the WGS84 semi-major axis used by spherical Web Mercator.
const earthRadius = 6378137.0

// maxMercatorLat is the latitude where Web Mercator is clipped.
const maxMercatorLat = 85.0511287798

// WebMercator is the spherical Mercator projection used by slippy maps (EPSG:3857).
type WebMercator struct{}

// Code returns the EPSG code.
func (WebMercator) Code() string { return "EPSG:3857" }

// FromLonLat projects a coordinate to metres.
func (WebMercator) FromLonLat(c Coordinate) Planar {
	lat := math.Max(math.Min(c.Lat, maxMercatorLat), -maxMercatorLat)
	x := earthRadius * c.Lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return Planar{X: x, Y: y}
}

// ToLonLat unprojects metres back to degrees.
func (WebMercator) ToLonLat(p Planar) Coordinate {
	lon := p.X / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(p.Y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return Coordinate{Lon: lon, Lat: lat}
}

// LonLat is the identity projection (EPSG:4326), planar units are degrees.
type LonLat struct{}

// Code returns the EPSG code.
func (LonLat) Code() string { return "EPSG:4326" }

// FromLonLat returns the coordinate unchanged.
func (LonLat) FromLonLat(c Coordinate) Planar { return Planar{X: c.Lon, Y: c.Lat} }

// ToLonLat returns the planar point unchanged.
func (LonLat) ToLonLat(p Planar) Coordinate { return Coordinate{Lon: p.X, Lat: p.Y} }
