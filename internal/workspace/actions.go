package workspace

import (
	"context"

	"github.com/reachmap/reachmap/internal/export"
	"github.com/reachmap/reachmap/internal/geo"
	"github.com/reachmap/reachmap/internal/isochrone"
	"github.com/reachmap/reachmap/internal/mapview"
	"github.com/reachmap/reachmap/internal/pointlist"
	"github.com/reachmap/reachmap/internal/widget/selectbox"
)

// AddPoint appends a point, optionally prefilled, and returns its ID.
func (w *Workspace) AddPoint(lon, lat *float64) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.points.Add(lon, lat).ID()
}

// RemovePoint deletes a point. The last remaining point is never removed and
// the call reports false.
func (w *Workspace) RemovePoint(id string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.points.Remove(id)
}

// SetPoint writes the raw coordinate text of a point.
func (w *Workspace) SetPoint(id, lon, lat string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.points.SetCoordinates(id, lon, lat)
}

// PickPoint fills the point from the next map click.
func (w *Workspace) PickPoint(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.points.EnterPickMode(id)
}

// MapClick delivers a click on the map surface at pixel p.
func (w *Workspace) MapClick(p geo.Pixel) mapview.ClickEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.canvas.Click(p)
}

// SetViewport replaces the map view, e.g. after a pan or a projection change.
func (w *Workspace) SetViewport(v *geo.Viewport) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.canvas.SetViewport(v)
}

// OutsideClick delivers a document click outside any widget trigger. It
// reports whether an open dropdown was closed.
func (w *Workspace) OutsideClick(target string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.OutsideClick(target)
}

// ToggleProfile opens or closes the profile dropdown. A non-nil layout
// carries the front-end's current measurements.
func (w *Workspace) ToggleProfile(layout selectbox.Layout) (*selectbox.Overlay, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	w.profile.SetLayout(layout)
	return w.profile.Toggle()
}

// SearchProfile filters the open profile dropdown.
func (w *Workspace) SearchProfile(query string) ([]selectbox.Option, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.profile.Search(query)
}

// SelectProfile picks a listed profile and closes the dropdown.
func (w *Workspace) SelectProfile(value string) (selectbox.Option, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.profile.Select(value, w.profile.ID()+":option")
}

// SetRangeType switches between time and distance budgets.
func (w *Workspace) SetRangeType(rt isochrone.RangeType) error {
	if !rt.Valid() {
		return &isochrone.ValidationError{Fields: []isochrone.FieldError{{
			Field:   isochrone.FieldRangeType,
			Message: "must be time or distance",
		}}}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	w.rangeType.SetChecked(rt == isochrone.RangeDistance)
	return nil
}

// SetMagnitude writes the raw text of the active magnitude field. The value
// is clamped to the field minimum the way a blurred input would be.
func (w *Workspace) SetMagnitude(value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	f := w.activeMagnitude()
	f.SetValue(value)
	f.Blur()
}

// SetOptions replaces the advanced provider options used by later builds.
func (w *Workspace) SetOptions(opts isochrone.Options) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	w.options = opts
}

// Export serializes the current result. The export event, when a publisher
// is configured, is best effort.
func (w *Workspace) Export(ctx context.Context) (*export.Artifact, error) {
	w.mu.Lock()
	ctl := w.exportCtl
	w.touch()
	w.mu.Unlock()

	if ctl == nil {
		return nil, ErrNothingToExport
	}
	a, err := ctl.Export()
	if err != nil {
		return nil, err
	}

	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, export.NewEvent(w.id, a)); err != nil {
			w.logger.Warn().Err(err).Str("filename", a.Filename).Msg("failed to publish export event")
		}
	}
	return a, nil
}

// Result returns the currently rendered result, or nil.
func (w *Workspace) Result() *isochrone.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Message returns the inline message, or nil.
func (w *Workspace) Message() *Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.message == nil {
		return nil
	}
	m := *w.message
	return &m
}

// Points returns the point entries in list order.
func (w *Workspace) Points() []pointlist.EntryState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.points.State()
}
