package isochrone

import (
	"errors"
	"fmt"
	"math"
)

// Limits bounds the accepted magnitude per range type.
type Limits struct {
	MinMinutes float64
	MaxMinutes float64
	MinMeters  float64
	MaxMeters  float64
}

// DefaultLimits mirrors the provider's public quota for isochrones.
var DefaultLimits = Limits{
	MinMinutes: 1,
	MaxMinutes: 120,
	MinMeters:  1,
	MaxMeters:  120000,
}

// Bounds returns the accepted interval for rt.
func (l Limits) Bounds(rt RangeType) (min, max float64) {
	if rt == RangeDistance {
		return l.MinMeters, l.MaxMeters
	}
	return l.MinMinutes, l.MaxMinutes
}

// Field names reported by Validate.
const (
	FieldCoordinates = "coordinates"
	FieldProfile     = "profile"
	FieldRangeType   = "rangeType"
	FieldMagnitude   = "magnitude"
)

// LonField names the longitude of the i-th coordinate.
func LonField(i int) string { return fmt.Sprintf("coordinates[%d].lon", i) }

// LatField names the latitude of the i-th coordinate.
func LatField(i int) string { return fmt.Sprintf("coordinates[%d].lat", i) }

// Validate checks a request locally. It returns a *ValidationError listing
// every offending field, or nil.
//
// A coordinate component that is not a finite number, is exactly zero or lies
// outside WGS84 bounds is rejected; zero is treated as "unset".
func Validate(req Request, limits Limits) error {
	verr := &ValidationError{}

	if len(req.Coordinates) == 0 {
		verr.add(FieldCoordinates, "at least one point is required")
	}
	for i, c := range req.Coordinates {
		if msg := componentProblem(c.Lon, 180); msg != "" {
			verr.add(LonField(i), msg)
		}
		if msg := componentProblem(c.Lat, 90); msg != "" {
			verr.add(LatField(i), msg)
		}
	}

	if !req.Profile.Valid() {
		verr.add(FieldProfile, "unknown profile")
	}

	if !req.RangeType.Valid() {
		verr.add(FieldRangeType, "must be time or distance")
	} else {
		min, max := limits.Bounds(req.RangeType)
		switch {
		case math.IsNaN(req.Magnitude) || math.IsInf(req.Magnitude, 0):
			verr.add(FieldMagnitude, "must be a number")
		case req.Magnitude <= 0:
			verr.add(FieldMagnitude, "must be positive")
		case req.Magnitude < min || req.Magnitude > max:
			verr.add(FieldMagnitude, fmt.Sprintf("must be between %g and %g", min, max))
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func componentProblem(v, bound float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "must be a number"
	case v == 0:
		return "must not be zero"
	case v < -bound || v > bound:
		return fmt.Sprintf("must be between %g and %g", -bound, bound)
	}
	return ""
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
