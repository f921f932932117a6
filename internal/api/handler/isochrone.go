package handler

import (
	"context"
	"net/http"

	"github.com/paulmach/orb"

	"github.com/reachmap/reachmap/internal/api/models"
	"github.com/reachmap/reachmap/internal/api/response"
	"github.com/reachmap/reachmap/internal/geo"
	"github.com/reachmap/reachmap/internal/isochrone"
)

// IsochroneService computes isochrones for the stateless endpoint.
type IsochroneService interface {
	Isochrones(ctx context.Context, req isochrone.Request) (*isochrone.Result, error)
	Limits() isochrone.Limits
	SupportedProfiles() []isochrone.Profile
}

// IsochroneHandler handles the stateless isochrone endpoints.
type IsochroneHandler struct {
	service IsochroneService
}

// NewIsochroneHandler creates a new IsochroneHandler.
func NewIsochroneHandler(service IsochroneService) *IsochroneHandler {
	return &IsochroneHandler{service: service}
}

// Compute handles POST /v1/isochrones:compute.
func (h *IsochroneHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var input models.IsochroneComputeRequest
	if err := response.Decode(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	req, ferrs := toRequest(input)
	if len(ferrs) > 0 {
		response.BadRequest(w, r, msgInvalidRequest, ferrs)
		return
	}

	result, err := h.service.Isochrones(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := models.IsochroneComputeResponse{
		Profile:   string(result.Profile),
		RangeType: string(result.RangeType),
		Provider:  result.Provider,
		FetchedAt: models.Timestamp(result.FetchedAt),
		Features:  result.Features,
	}
	if len(result.Features.Features) > 0 {
		b := result.Bound()
		resp.BBox = []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Profiles handles GET /v1/profiles.
func (h *IsochroneHandler) Profiles(w http.ResponseWriter, r *http.Request) {
	limits := h.service.Limits()
	supported := h.service.SupportedProfiles()

	out := models.ProfilesResponse{
		Profiles:   make([]models.ProfileInfo, 0, len(supported)),
		MaxMinutes: limits.MaxMinutes,
		MaxMeters:  limits.MaxMeters,
	}
	for _, p := range supported {
		out.Profiles = append(out.Profiles, models.ProfileInfo{
			ID:        string(p),
			Title:     p.Title(),
			Color:     p.Color(),
			FillColor: p.FillColor(),
		})
	}
	response.JSON(w, r, http.StatusOK, out)
}

const msgInvalidRequest = "invalid isochrone request"

// toRequest converts the wire body. Shape problems the service cannot see
// (unknown avoid features, non-polygon avoid areas) are reported here.
func toRequest(in models.IsochroneComputeRequest) (isochrone.Request, []models.FieldError) {
	var ferrs []models.FieldError

	rt := isochrone.RangeType(in.RangeType)
	if rt == "" {
		rt = isochrone.RangeTime
	}

	req := isochrone.Request{
		Coordinates: make([]geo.Coordinate, len(in.Locations)),
		Profile:     isochrone.Profile(in.Profile),
		RangeType:   rt,
		Magnitude:   in.Range,
		Options: isochrone.Options{
			Interval:   in.Interval,
			Attributes: in.Attributes,
		},
	}
	for i, p := range in.Locations {
		req.Coordinates[i] = geo.Coordinate{Lon: p.Lon, Lat: p.Lat}
	}

	for _, f := range in.AvoidFeatures {
		af := isochrone.AvoidFeature(f)
		if !af.Valid() {
			ferrs = append(ferrs, models.FieldError{Field: "avoidFeatures", Message: "unsupported feature " + f})
			continue
		}
		req.Options.AvoidFeatures = append(req.Options.AvoidFeatures, af)
	}

	if in.Interval < 0 || (in.Interval > 0 && in.Range > 0 && in.Interval > in.Range) {
		ferrs = append(ferrs, models.FieldError{Field: "interval", Message: "must be positive and no larger than range"})
	}

	if in.AvoidPolygons != nil {
		switch g := in.AvoidPolygons.Geometry().(type) {
		case orb.Polygon, orb.MultiPolygon:
			req.Options.AvoidPolygons = g
		default:
			ferrs = append(ferrs, models.FieldError{Field: "avoidPolygons", Message: "must be a Polygon or MultiPolygon"})
		}
	}

	return req, ferrs
}
