// Package export serializes isochrone results into downloadable GeoJSON
// artifacts and announces exports to downstream consumers.
package export

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/reachmap/reachmap/internal/isochrone"
)

// ErrNothingToExport is returned when no result has been built yet.
var ErrNothingToExport = errors.New("no isochrone to export")

// ContentType is the media type of exported artifacts.
const ContentType = "application/geo+json"

// Artifact is a downloadable GeoJSON FeatureCollection.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Features    int
	Profile     isochrone.Profile
	RangeType   isochrone.RangeType
	CreatedAt   time.Time
}

// Filename returns isochrone_<YYYY-MM-DD>.geojson for the UTC date of t.
func Filename(t time.Time) string {
	return fmt.Sprintf("isochrone_%s.geojson", t.UTC().Format("2006-01-02"))
}

// exportedProperties are the only feature properties written to artifacts.
var exportedProperties = []string{
	isochrone.PropTimeMinutes,
	isochrone.PropDistanceMeters,
	isochrone.PropProfile,
}

// New serializes result as it is at call time.
func New(result *isochrone.Result, now time.Time) (*Artifact, error) {
	if result == nil || result.Features == nil {
		return nil, ErrNothingToExport
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range result.Features.Features {
		out := geojson.NewFeature(f.Geometry)
		for _, key := range exportedProperties {
			if v, ok := f.Properties[key]; ok {
				out.Properties[key] = v
			}
		}
		fc.Append(out)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding geojson: %w", err)
	}

	return &Artifact{
		Filename:    Filename(now),
		ContentType: ContentType,
		Data:        data,
		Features:    len(fc.Features),
		Profile:     result.Profile,
		RangeType:   result.RangeType,
		CreatedAt:   now.UTC(),
	}, nil
}
