package workspace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/reachmap/reachmap/internal/export"
	"github.com/reachmap/reachmap/internal/geo"
	"github.com/reachmap/reachmap/internal/isochrone"
	"github.com/reachmap/reachmap/internal/mapview"
	"github.com/reachmap/reachmap/internal/widget/form"
)

// MessageInvalidInput is shown when local validation rejects a build.
const MessageInvalidInput = "Check the highlighted fields"

// BuildOutcome describes a rendered build.
type BuildOutcome struct {
	Generation uint64
	Result     *isochrone.Result
	Features   int
	Duration   time.Duration
}

// RenderError wraps an unexpected failure while drawing a result. It is
// logged and never returned to the caller.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "rendering isochrone: " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

// Build validates the form, marks the points and asks the service for
// isochrones. Only the newest build may render; an older one returns
// ErrSuperseded once its response arrives.
func (w *Workspace) Build(ctx context.Context) (*BuildOutcome, error) {
	w.mu.Lock()
	w.touch()
	req := w.request()
	if err := w.validate(req); err != nil {
		w.mu.Unlock()
		return nil, err
	}

	w.generation++
	gen := w.generation
	w.inFlight++
	restore := w.placeMarkers(req.Coordinates)
	w.message = nil
	w.mu.Unlock()

	start := time.Now()
	result, err := w.service.Isochrones(ctx, req)
	elapsed := time.Since(start)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight--

	if gen != w.generation {
		w.logger.Debug().
			Uint64("generation", gen).
			Uint64("current", w.generation).
			Msg("discarding superseded build")
		return nil, ErrSuperseded
	}

	if err != nil {
		restore()
		w.message = &Message{Kind: MessageError, Text: err.Error()}
		w.logger.Warn().Err(err).
			Str("profile", string(req.Profile)).
			Dur("duration", elapsed).
			Msg("isochrone build failed")
		return nil, err
	}

	if err := w.render(result); err != nil {
		w.logger.Error().Err(err).Uint64("generation", gen).Msg("render failed")
		return &BuildOutcome{Generation: gen, Duration: elapsed}, nil
	}

	w.logger.Info().
		Str("profile", string(req.Profile)).
		Str("range_type", string(req.RangeType)).
		Float64("magnitude", req.Magnitude).
		Int("points", len(req.Coordinates)).
		Dur("duration", elapsed).
		Msg("isochrone built")

	return &BuildOutcome{
		Generation: gen,
		Result:     result,
		Features:   len(result.Features.Features),
		Duration:   elapsed,
	}, nil
}

// request reads the form. Only the visible magnitude field is consulted.
// Must be called with mu held.
func (w *Workspace) request() isochrone.Request {
	rt := isochrone.RangeTime
	field := w.minutes
	if w.rangeType.Checked() {
		rt = isochrone.RangeDistance
		field = w.meters
	}
	magnitude, err := field.Float()
	if err != nil {
		magnitude = math.NaN()
	}

	var profile isochrone.Profile
	if opt, ok := w.profile.Selected(); ok {
		profile = isochrone.Profile(opt.Value)
	}

	return isochrone.Request{
		Coordinates: w.points.Coordinates(),
		Profile:     profile,
		RangeType:   rt,
		Magnitude:   magnitude,
		Options:     w.options,
	}
}

// validate flags offending widgets. Must be called with mu held.
func (w *Workspace) validate(req isochrone.Request) error {
	entries := w.points.Entries()
	for _, e := range entries {
		e.Lon().ClearInvalid()
		e.Lat().ClearInvalid()
	}
	w.minutes.ClearInvalid()
	w.meters.ClearInvalid()

	profileOK := w.profile.Validate()
	err := isochrone.Validate(req, w.limits)
	if err == nil && profileOK {
		return nil
	}

	verr := &isochrone.ValidationError{}
	if err != nil && !errors.As(err, &verr) {
		return err
	}
	for i, e := range entries {
		for _, f := range verr.Fields {
			switch f.Field {
			case isochrone.LonField(i):
				e.Lon().SetInvalid(f.Message)
			case isochrone.LatField(i):
				e.Lat().SetInvalid(f.Message)
			}
		}
	}
	for _, f := range verr.Fields {
		if f.Field == isochrone.FieldMagnitude {
			w.activeMagnitude().SetInvalid(f.Message)
		}
	}
	if !profileOK && !verr.Has(isochrone.FieldProfile) {
		verr.Fields = append(verr.Fields, isochrone.FieldError{
			Field:   isochrone.FieldProfile,
			Message: "required",
		})
	}

	w.message = &Message{Kind: MessageError, Text: MessageInvalidInput}
	w.logger.Debug().Int("fields", len(verr.Fields)).Msg("build rejected by validation")
	return verr
}

func (w *Workspace) activeMagnitude() *form.Field {
	if w.rangeType.Checked() {
		return w.meters
	}
	return w.minutes
}

// placeMarkers replaces the point markers and returns a function that puts
// the map back as it was, removing the points layer if this call created it.
// Must be called with mu held.
func (w *Workspace) placeMarkers(coords []geo.Coordinate) (restore func()) {
	layer, existed := w.canvas.Layer(mapview.LayerPoints)
	if !existed {
		layer = mapview.NewLayer(mapview.LayerPoints, pointsZIndex, pointsStyle)
		w.canvas.AddLayer(layer)
	}
	previous := layer.Features()

	layer.Clear()
	for i, c := range coords {
		f := geojson.NewFeature(orb.Point{c.Lon, c.Lat})
		f.ID = "point_" + strconv.Itoa(i)
		layer.AddFeature(f)
	}

	return func() {
		if !existed {
			w.canvas.RemoveLayer(mapview.LayerPoints)
			return
		}
		layer.Clear()
		for _, f := range previous {
			layer.AddFeature(f)
		}
	}
}

// render replaces the isochrone layer and the export control. Must be called
// with mu held.
func (w *Workspace) render(result *isochrone.Result) *RenderError {
	if result == nil || result.Features == nil {
		return &RenderError{Err: errors.New("empty result")}
	}
	if !result.Profile.Valid() {
		return &RenderError{Err: fmt.Errorf("unknown profile %q", result.Profile)}
	}

	style := mapview.Style{
		StrokeColor: result.Profile.Color(),
		StrokeWidth: 2,
		FillColor:   result.Profile.FillColor(),
	}
	w.canvas.RemoveLayer(mapview.LayerIsochrone)
	w.canvas.AddLayer(mapview.NewLayer(mapview.LayerIsochrone, isochroneZIndex, style, result.Features.Features...))

	w.canvas.RemoveControl(export.ControlName)
	ctl := export.NewControl(result)
	w.canvas.AddControl(ctl)

	w.result = result
	w.exportCtl = ctl
	return nil
}
