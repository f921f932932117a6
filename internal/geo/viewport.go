package geo

import "math"

// Pixel is a screen position with (0, 0) at the top-left corner.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// mercatorResolution0 is metres per pixel at zoom 0 for 256px tiles.
const mercatorResolution0 = 2 * math.Pi * earthRadius / 256

// Viewport maps screen pixels to planar coordinates around a center point.
type Viewport struct {
	projection Projection
	center     Planar
	zoom       float64
	resolution float64 // planar units per pixel
	width      float64
	height     float64
}

// NewViewport creates a viewport centred on center at the given zoom level.
// Resolution follows the slippy-map convention for Web Mercator; other
// projections derive it from the degree span of a Mercator tile.
func NewViewport(projection Projection, center Coordinate, zoom float64, width, height int) *Viewport {
	v := &Viewport{
		projection: projection,
		width:      float64(width),
		height:     float64(height),
	}
	v.SetZoom(zoom)
	v.SetCenter(center)
	return v
}

// Clone returns an independent copy.
func (v *Viewport) Clone() *Viewport {
	c := *v
	return &c
}

// Projection returns the viewport's projection.
func (v *Viewport) Projection() Projection {
	return v.projection
}

// SetCenter recentres the viewport.
func (v *Viewport) SetCenter(c Coordinate) {
	v.center = v.projection.FromLonLat(c)
}

// Center returns the geographic center.
func (v *Viewport) Center() Coordinate {
	return v.projection.ToLonLat(v.center)
}

// SetZoom updates the resolution for the given zoom level.
func (v *Viewport) SetZoom(zoom float64) {
	res := mercatorResolution0 / math.Pow(2, zoom)
	if _, ok := v.projection.(WebMercator); !ok {
		res = 360.0 / 256 / math.Pow(2, zoom)
	}
	v.zoom = zoom
	v.resolution = res
}

// Zoom returns the zoom level.
func (v *Viewport) Zoom() float64 { return v.zoom }

// Size returns the viewport dimensions in pixels.
func (v *Viewport) Size() (width, height float64) { return v.width, v.height }

// Resize updates the screen dimensions.
func (v *Viewport) Resize(width, height int) {
	v.width = float64(width)
	v.height = float64(height)
}

// PixelToPlanar converts a screen position to planar coordinates.
func (v *Viewport) PixelToPlanar(p Pixel) Planar {
	return Planar{
		X: v.center.X + (p.X-v.width/2)*v.resolution,
		Y: v.center.Y - (p.Y-v.height/2)*v.resolution, // screen Y grows downward
	}
}

// PlanarToPixel converts planar coordinates to a screen position.
func (v *Viewport) PlanarToPixel(p Planar) Pixel {
	return Pixel{
		X: (p.X-v.center.X)/v.resolution + v.width/2,
		Y: -(p.Y-v.center.Y)/v.resolution + v.height/2,
	}
}
