// Package isochrone provides reachable-area computation for walk, bike and
// car profiles.
package isochrone

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/reachmap/reachmap/internal/geo"
)

// Provider defines the interface for isochrone providers.
type Provider interface {
	// Isochrones computes the reachable area around the request locations.
	Isochrones(ctx context.Context, req Request) (*Result, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
	// SupportedProfiles returns the travel profiles this provider supports.
	SupportedProfiles() []Profile
}

// Profile represents a travel profile (mode of transport).
type Profile string

const (
	// ProfileWalking is the pedestrian profile.
	ProfileWalking Profile = "foot-walking"
	// ProfileCycling is the regular bicycle profile.
	ProfileCycling Profile = "cycling-regular"
	// ProfileDriving is the car profile.
	ProfileDriving Profile = "driving-car"
)

// Profiles returns every known profile in display order.
func Profiles() []Profile {
	return []Profile{ProfileWalking, ProfileCycling, ProfileDriving}
}

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool {
	switch p {
	case ProfileWalking, ProfileCycling, ProfileDriving:
		return true
	}
	return false
}

// Title returns a human-readable profile name.
func (p Profile) Title() string {
	switch p {
	case ProfileWalking:
		return "Walking"
	case ProfileCycling:
		return "Cycling"
	case ProfileDriving:
		return "Driving"
	}
	return string(p)
}

// Color returns the stroke colour used when rendering results of p.
func (p Profile) Color() string {
	switch p {
	case ProfileWalking:
		return "#4CAF50"
	case ProfileCycling:
		return "#2196F3"
	case ProfileDriving:
		return "#FF5722"
	}
	return "#607D8B"
}

// FillColor is Color with a 0x33 alpha suffix.
func (p Profile) FillColor() string {
	return p.Color() + "33"
}

// RangeType selects whether the magnitude is a duration or a distance.
type RangeType string

const (
	// RangeTime measures the budget in minutes.
	RangeTime RangeType = "time"
	// RangeDistance measures the budget in metres.
	RangeDistance RangeType = "distance"
)

// Valid reports whether r is a known range type.
func (r RangeType) Valid() bool {
	return r == RangeTime || r == RangeDistance
}

// AvoidFeature is a road feature type the provider can route around.
type AvoidFeature string

const (
	AvoidHighways AvoidFeature = "highways"
	AvoidTollways AvoidFeature = "tollways"
	AvoidFerries  AvoidFeature = "ferries"
)

// Valid reports whether the provider accepts f for isochrones.
func (f AvoidFeature) Valid() bool {
	switch f {
	case AvoidHighways, AvoidTollways, AvoidFerries:
		return true
	}
	return false
}

// Options carries the optional provider parameters.
type Options struct {
	// Interval splits the range into bands of this size (same unit as Magnitude).
	Interval float64
	// Attributes requests extra feature properties, e.g. "area".
	Attributes []string
	// AvoidFeatures is filtered to the supported feature types before sending.
	AvoidFeatures []AvoidFeature
	// AvoidPolygons is an orb.Polygon or orb.MultiPolygon to route around.
	AvoidPolygons orb.Geometry
}

// Request is the request for computing an isochrone.
type Request struct {
	Coordinates []geo.Coordinate
	Profile     Profile
	RangeType   RangeType
	// Magnitude is minutes for RangeTime and metres for RangeDistance.
	Magnitude float64
	Options   Options
}

// Feature property keys of a normalized result.
const (
	PropTimeMinutes    = "timeMinutes"
	PropDistanceMeters = "distanceMeters"
	PropProfile        = "profile"
	PropGroupIndex     = "groupIndex"
)

// Result is a normalized isochrone: one polygon feature per returned band.
type Result struct {
	Features  *geojson.FeatureCollection
	Profile   Profile
	RangeType RangeType
	Provider  string
	FetchedAt time.Time
}

// Bound returns the bounding box of every feature in the result.
func (r *Result) Bound() orb.Bound {
	var (
		b     orb.Bound
		first = true
	)
	for _, f := range r.Features.Features {
		if f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if first {
			b, first = fb, false
			continue
		}
		b = b.Union(fb)
	}
	return b
}
