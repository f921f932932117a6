package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/reachmap/reachmap/internal/api/models"
	"github.com/reachmap/reachmap/internal/api/response"
	"github.com/reachmap/reachmap/internal/geo"
	"github.com/reachmap/reachmap/internal/isochrone"
	"github.com/reachmap/reachmap/internal/widget/selectbox"
	"github.com/reachmap/reachmap/internal/workspace"
)

// WorkbenchMetrics records workbench activity.
type WorkbenchMetrics interface {
	RecordBuild(ctx context.Context, profile, outcome string)
	RecordExport(ctx context.Context, profile string)
	WorkspaceOpened(ctx context.Context)
	WorkspaceClosed(ctx context.Context, n int)
}

type nopWorkbenchMetrics struct{}

func (nopWorkbenchMetrics) RecordBuild(context.Context, string, string) {}
func (nopWorkbenchMetrics) RecordExport(context.Context, string)        {}
func (nopWorkbenchMetrics) WorkspaceOpened(context.Context)             {}
func (nopWorkbenchMetrics) WorkspaceClosed(context.Context, int)        {}

// Build outcomes recorded by WorkbenchMetrics.
const (
	OutcomeOK         = "ok"
	OutcomeInvalid    = "invalid"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// WorkspaceHandler drives workspaces over HTTP. Every mutating call returns
// the resulting workspace state so clients can re-render from it.
type WorkspaceHandler struct {
	store   *workspace.Store
	metrics WorkbenchMetrics
}

// NewWorkspaceHandler creates a new WorkspaceHandler. metrics may be nil.
func NewWorkspaceHandler(store *workspace.Store, metrics WorkbenchMetrics) *WorkspaceHandler {
	if metrics == nil {
		metrics = nopWorkbenchMetrics{}
	}
	return &WorkspaceHandler{store: store, metrics: metrics}
}

// workspace resolves {workspaceId}, writing a 404 when it is unknown.
func (h *WorkspaceHandler) workspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, err := h.store.Get(chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return ws, true
}

// Create handles POST /v1/workspaces.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	ws, err := h.store.Create()
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.WorkspaceOpened(r.Context())
	response.Created(w, r, "/v1/workspaces/"+ws.ID(), ws.State())
}

// Get handles GET /v1/workspaces/{workspaceId}.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, ws.State())
}

// Delete handles DELETE /v1/workspaces/{workspaceId}.
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "workspaceId")); err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.WorkspaceClosed(r.Context(), 1)
	response.NoContent(w, r)
}

// AddPoint handles POST /v1/workspaces/{workspaceId}/points.
func (h *WorkspaceHandler) AddPoint(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.AddPointRequest
	if !decode(w, r, &input) {
		return
	}

	id := ws.AddPoint(input.Lon, input.Lat)
	response.JSON(w, r, http.StatusCreated, models.AddPointResponse{ID: id, State: ws.State()})
}

// SetPoint handles PUT /v1/workspaces/{workspaceId}/points/{pointId}.
func (h *WorkspaceHandler) SetPoint(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.SetPointRequest
	if !decode(w, r, &input) {
		return
	}

	if err := ws.SetPoint(chi.URLParam(r, "pointId"), input.Lon, input.Lat); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ws.State())
}

// RemovePoint handles DELETE /v1/workspaces/{workspaceId}/points/{pointId}.
// Removing the last point is refused with 409.
func (h *WorkspaceHandler) RemovePoint(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	removed, err := ws.RemovePoint(chi.URLParam(r, "pointId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !removed {
		response.Conflict(w, r, "the last point cannot be removed")
		return
	}
	response.JSON(w, r, http.StatusOK, ws.State())
}

// PickPoint handles POST /v1/workspaces/{workspaceId}/points/{pointId}/pick.
// The next map click fills the point.
func (h *WorkspaceHandler) PickPoint(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.PickPoint(chi.URLParam(r, "pointId")); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ws.State())
}

// MapClick handles POST /v1/workspaces/{workspaceId}/map/click.
func (h *WorkspaceHandler) MapClick(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.MapClickRequest
	if err := response.Decode(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	ev := ws.MapClick(geo.Pixel{X: input.X, Y: input.Y})
	response.JSON(w, r, http.StatusOK, models.MapClickResponse{
		X:     ev.Coordinate.X,
		Y:     ev.Coordinate.Y,
		State: ws.State(),
	})
}

// SetViewport handles PUT /v1/workspaces/{workspaceId}/map/viewport.
func (h *WorkspaceHandler) SetViewport(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.ViewportRequest
	if err := response.Decode(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	v, ferrs := toViewport(input)
	if len(ferrs) > 0 {
		response.BadRequest(w, r, "invalid viewport", ferrs)
		return
	}
	ws.SetViewport(v)
	response.JSON(w, r, http.StatusOK, ws.State())
}

// OutsideClick handles POST /v1/workspaces/{workspaceId}/outside-click.
func (h *WorkspaceHandler) OutsideClick(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.OutsideClickRequest
	if !decode(w, r, &input) {
		return
	}

	closed := ws.OutsideClick(input.Target)
	response.JSON(w, r, http.StatusOK, models.OutsideClickResponse{Closed: closed, State: ws.State()})
}

// ToggleProfile handles POST /v1/workspaces/{workspaceId}/profile/toggle.
// Without a layout body the default desktop measurements are used.
func (h *WorkspaceHandler) ToggleProfile(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.ToggleProfileRequest
	if !decode(w, r, &input) {
		return
	}

	layout := workspace.DefaultLayout()
	if l := input.Layout; l != nil {
		layout = &selectbox.FixedLayout{
			Trigger: selectbox.Rect{
				Top:    l.Trigger.Top,
				Left:   l.Trigger.Left,
				Width:  l.Trigger.Width,
				Height: l.Trigger.Height,
			},
			Viewport:     l.ViewportHeight,
			ItemHeight:   l.ItemHeight,
			HeaderHeight: l.HeaderHeight,
			ZIndex:       l.ZIndices,
		}
	}

	if _, err := ws.ToggleProfile(layout); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ws.State())
}

// SearchProfile handles POST /v1/workspaces/{workspaceId}/profile/search.
func (h *WorkspaceHandler) SearchProfile(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.SearchRequest
	if !decode(w, r, &input) {
		return
	}

	if _, err := ws.SearchProfile(input.Query); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ws.State())
}

// SelectProfile handles POST /v1/workspaces/{workspaceId}/profile/select.
func (h *WorkspaceHandler) SelectProfile(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.SelectRequest
	if err := response.Decode(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if _, err := ws.SelectProfile(input.Value); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ws.State())
}

// SetRange handles PUT /v1/workspaces/{workspaceId}/range. The type is
// applied first so that value lands in the newly active field.
func (h *WorkspaceHandler) SetRange(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.RangeRequest
	if err := response.Decode(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if input.Type != "" {
		if err := ws.SetRangeType(isochrone.RangeType(input.Type)); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if input.Value != nil {
		ws.SetMagnitude(strings.TrimSpace(*input.Value))
	}
	response.JSON(w, r, http.StatusOK, ws.State())
}

// SetOptions handles PUT /v1/workspaces/{workspaceId}/options.
func (h *WorkspaceHandler) SetOptions(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var input models.OptionsRequest
	if !decode(w, r, &input) {
		return
	}

	opts := isochrone.Options{Interval: input.Interval, Attributes: input.Attributes}
	for _, f := range input.AvoidFeatures {
		af := isochrone.AvoidFeature(f)
		if !af.Valid() {
			response.BadRequest(w, r, "invalid options", []models.FieldError{{Field: "avoidFeatures", Message: "unsupported feature " + f}})
			return
		}
		opts.AvoidFeatures = append(opts.AvoidFeatures, af)
	}
	if opts.Interval < 0 {
		response.BadRequest(w, r, "invalid options", []models.FieldError{{Field: "interval", Message: "must not be negative"}})
		return
	}

	ws.SetOptions(opts)
	response.JSON(w, r, http.StatusOK, ws.State())
}

// Build handles POST /v1/workspaces/{workspaceId}/isochrones:build.
func (h *WorkspaceHandler) Build(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	outcome, err := ws.Build(ctx)
	profile := ws.State().Profile
	label := ""
	if profile.Selected != nil {
		label = profile.Selected.Value
	}

	if err != nil {
		h.metrics.RecordBuild(ctx, label, buildOutcome(err))
		if !errors.Is(err, workspace.ErrSuperseded) && !isochrone.IsValidationError(err) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("workspace_id", ws.ID()).Msg("isochrone build failed")
		}
		writeError(w, r, err)
		return
	}
	h.metrics.RecordBuild(ctx, label, OutcomeOK)

	response.JSON(w, r, http.StatusOK, models.BuildResponse{
		Generation: outcome.Generation,
		Features:   outcome.Features,
		DurationMs: outcome.Duration.Milliseconds(),
		State:      ws.State(),
	})
}

func buildOutcome(err error) string {
	switch {
	case errors.Is(err, workspace.ErrSuperseded):
		return OutcomeSuperseded
	case isochrone.IsValidationError(err):
		return OutcomeInvalid
	}
	return OutcomeFailed
}

// Export handles GET /v1/workspaces/{workspaceId}/isochrones/export.
func (h *WorkspaceHandler) Export(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	a, err := ws.Export(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.RecordExport(r.Context(), string(a.Profile))
	response.Attachment(w, r, a.ContentType, a.Filename, a.Data)
}

func toViewport(in models.ViewportRequest) (*geo.Viewport, []models.FieldError) {
	var ferrs []models.FieldError

	var projection geo.Projection
	switch in.Projection {
	case "", geo.WebMercator{}.Code():
		projection = geo.WebMercator{}
	case geo.LonLat{}.Code():
		projection = geo.LonLat{}
	default:
		ferrs = append(ferrs, models.FieldError{Field: "projection", Message: "must be EPSG:3857 or EPSG:4326"})
	}

	center := geo.Coordinate{Lon: in.Center.Lon, Lat: in.Center.Lat}
	if err := center.Validate(); err != nil {
		ferrs = append(ferrs, models.FieldError{Field: "center", Message: err.Error()})
	}
	if in.Zoom < 0 || in.Zoom > 24 {
		ferrs = append(ferrs, models.FieldError{Field: "zoom", Message: "must be between 0 and 24"})
	}
	if in.Width <= 0 || in.Height <= 0 {
		ferrs = append(ferrs, models.FieldError{Field: "size", Message: "width and height must be positive"})
	}

	if len(ferrs) > 0 {
		return nil, ferrs
	}
	return geo.NewViewport(projection, center, in.Zoom, in.Width, in.Height), nil
}
