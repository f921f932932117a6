package openrouteservice

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
)

// orsRequest represents the ORS isochrones API request body.
type orsRequest struct {
	Locations    [][2]float64 `json:"locations"`
	Range        []float64    `json:"range"`
	RangeType    string       `json:"range_type"`
	LocationType string       `json:"location_type"`
	Smoothing    float64      `json:"smoothing"`
	Interval     float64      `json:"interval,omitempty"`
	Attributes   []string     `json:"attributes,omitempty"`
	Options      *orsOptions  `json:"options,omitempty"`
}

// orsOptions carries routing restrictions.
type orsOptions struct {
	AvoidFeatures []string          `json:"avoid_features,omitempty"`
	AvoidPolygons *geojson.Geometry `json:"avoid_polygons,omitempty"`
}

// Property keys in ORS isochrone features.
const (
	orsPropValue      = "value"
	orsPropGroupIndex = "group_index"
)

// passthroughAttributes are copied to normalized features when present.
var passthroughAttributes = []string{"area", "reachfactor", "total_pop"}

// orsErrorResponse represents an error response from ORS. The error field is
// usually an object but some gateways return a bare string.
type orsErrorResponse struct {
	Error json.RawMessage `json:"error"`
}

type orsErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// message extracts the provider message, or "" when there is none.
func (r orsErrorResponse) message() (int, string) {
	if len(r.Error) == 0 {
		return 0, ""
	}
	var detail orsErrorDetail
	if err := json.Unmarshal(r.Error, &detail); err == nil {
		return detail.Code, detail.Message
	}
	var text string
	if err := json.Unmarshal(r.Error, &text); err == nil {
		return 0, text
	}
	return 0, ""
}
