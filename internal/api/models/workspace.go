package models

import (
	"github.com/reachmap/reachmap/internal/workspace"
)

// AddPointRequest appends a point; missing coordinates leave the fields empty.
type AddPointRequest struct {
	Lon *float64 `json:"lon,omitempty"`
	Lat *float64 `json:"lat,omitempty"`
}

// AddPointResponse returns the new point ID with the updated workspace.
type AddPointResponse struct {
	ID    string          `json:"id"`
	State workspace.State `json:"state"`
}

// SetPointRequest carries the raw text typed into a point's fields.
type SetPointRequest struct {
	Lon string `json:"lon"`
	Lat string `json:"lat"`
}

// MapClickRequest is a click on the map surface, in pixels from the top-left.
type MapClickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MapClickResponse echoes the planar click position.
type MapClickResponse struct {
	X     float64         `json:"x"`
	Y     float64         `json:"y"`
	State workspace.State `json:"state"`
}

// ViewportRequest replaces the map view.
type ViewportRequest struct {
	// Projection is "EPSG:3857" (default) or "EPSG:4326".
	Projection string  `json:"projection,omitempty"`
	Center     Point   `json:"center"`
	Zoom       float64 `json:"zoom"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// OutsideClickRequest is a document click outside any dropdown trigger.
type OutsideClickRequest struct {
	Target string `json:"target"`
}

// OutsideClickResponse reports whether a dropdown was closed.
type OutsideClickResponse struct {
	Closed bool            `json:"closed"`
	State  workspace.State `json:"state"`
}

// Rect is a measured element box in viewport pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LayoutRequest carries the front-end's measurements for the dropdown.
type LayoutRequest struct {
	Trigger        Rect      `json:"trigger"`
	ViewportHeight float64   `json:"viewportHeight"`
	ItemHeight     float64   `json:"itemHeight"`
	HeaderHeight   float64   `json:"headerHeight,omitempty"`
	ZIndices       []float64 `json:"zIndices,omitempty"`
}

// ToggleProfileRequest opens or closes the profile dropdown.
type ToggleProfileRequest struct {
	Layout *LayoutRequest `json:"layout,omitempty"`
}

// SearchRequest filters the open dropdown.
type SearchRequest struct {
	Query string `json:"query"`
}

// SelectRequest picks a listed option.
type SelectRequest struct {
	Value string `json:"value"`
}

// RangeRequest sets the range type and, optionally, the active magnitude text.
type RangeRequest struct {
	Type  string  `json:"type"`
	Value *string `json:"value,omitempty"`
}

// OptionsRequest sets the advanced provider options for later builds.
type OptionsRequest struct {
	Interval      float64  `json:"interval,omitempty"`
	Attributes    []string `json:"attributes,omitempty"`
	AvoidFeatures []string `json:"avoidFeatures,omitempty"`
}

// BuildResponse reports a completed build.
type BuildResponse struct {
	Generation uint64          `json:"generation"`
	Features   int             `json:"features"`
	DurationMs int64           `json:"durationMs"`
	State      workspace.State `json:"state"`
}
