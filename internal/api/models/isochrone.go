package models

import (
	"github.com/paulmach/orb/geojson"
)

// IsochroneComputeRequest is the body of POST /v1/isochrones:compute.
type IsochroneComputeRequest struct {
	Locations []Point `json:"locations"`
	Profile   string  `json:"profile"`
	// RangeType is "time" (minutes) or "distance" (metres); defaults to time.
	RangeType string  `json:"rangeType,omitempty"`
	Range     float64 `json:"range"`
	// Interval splits the range into bands, in the unit of Range.
	Interval      float64           `json:"interval,omitempty"`
	Attributes    []string          `json:"attributes,omitempty"`
	AvoidFeatures []string          `json:"avoidFeatures,omitempty"`
	AvoidPolygons *geojson.Geometry `json:"avoidPolygons,omitempty"`
}

// IsochroneComputeResponse wraps the provider result.
type IsochroneComputeResponse struct {
	Profile   string                     `json:"profile"`
	RangeType string                     `json:"rangeType"`
	Provider  string                     `json:"provider"`
	FetchedAt Timestamp                  `json:"fetchedAt"`
	BBox      []float64                  `json:"bbox,omitempty"`
	Features  *geojson.FeatureCollection `json:"features"`
}

// ProfileInfo describes a travel profile for pickers.
type ProfileInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Color     string `json:"color"`
	FillColor string `json:"fillColor"`
}

// ProfilesResponse lists the profiles the provider supports.
type ProfilesResponse struct {
	Profiles   []ProfileInfo `json:"profiles"`
	MaxMinutes float64       `json:"maxMinutes"`
	MaxMeters  float64       `json:"maxMeters"`
}
