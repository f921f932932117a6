package workspace

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/reachmap/reachmap/internal/geo"
	"github.com/reachmap/reachmap/internal/isochrone"
	"github.com/reachmap/reachmap/internal/mapview"
	"github.com/reachmap/reachmap/internal/pointlist"
	"github.com/reachmap/reachmap/internal/widget/form"
	"github.com/reachmap/reachmap/internal/widget/selectbox"
)

// LayerState is a serialisable snapshot of a map layer.
type LayerState struct {
	Name     string                     `json:"name"`
	ZIndex   int                        `json:"zIndex"`
	Style    mapview.Style              `json:"style"`
	Visible  bool                       `json:"visible"`
	Features *geojson.FeatureCollection `json:"features"`
}

// ViewState describes the map view.
type ViewState struct {
	Projection string         `json:"projection"`
	Center     geo.Coordinate `json:"center"`
	Zoom       float64        `json:"zoom"`
}

// State is everything a front-end needs to redraw the workspace.
type State struct {
	ID         string                  `json:"id"`
	Points     []pointlist.EntryState  `json:"points"`
	Profile    selectbox.State         `json:"profile"`
	RangeType  isochrone.RangeType     `json:"rangeType"`
	Time       form.FieldState         `json:"time"`
	Distance   form.FieldState         `json:"distance"`
	Options    isochrone.Options       `json:"-"`
	Message    *Message                `json:"message,omitempty"`
	Building   bool                    `json:"building"`
	Generation uint64                  `json:"generation"`
	View       ViewState               `json:"view"`
	Layers     []LayerState            `json:"layers"`
	Controls   []string                `json:"controls"`
	Exportable bool                    `json:"exportable"`
	CreatedAt  time.Time               `json:"createdAt"`
	LastActive time.Time               `json:"lastActive"`
}

// State snapshots the workspace.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	rt := isochrone.RangeTime
	if w.rangeType.Checked() {
		rt = isochrone.RangeDistance
	}

	st := State{
		ID:         w.id,
		Points:     w.points.State(),
		Profile:    w.profile.State(),
		RangeType:  rt,
		Time:       w.minutes.State(),
		Distance:   w.meters.State(),
		Options:    w.options,
		Building:   w.inFlight > 0,
		Generation: w.generation,
		Exportable: w.exportCtl != nil,
		CreatedAt:  w.createdAt,
		LastActive: w.lastActive,
	}
	if w.message != nil {
		m := *w.message
		st.Message = &m
	}

	v := w.canvas.Viewport()
	st.View = ViewState{
		Projection: v.Projection().Code(),
		Center:     v.Center(),
		Zoom:       v.Zoom(),
	}

	layers := w.canvas.Layers()
	st.Layers = make([]LayerState, 0, len(layers))
	for _, l := range layers {
		fc := geojson.NewFeatureCollection()
		fc.Features = l.Features()
		st.Layers = append(st.Layers, LayerState{
			Name:     l.Name(),
			ZIndex:   l.ZIndex(),
			Style:    l.Style(),
			Visible:  l.Visible(),
			Features: fc,
		})
	}

	for _, c := range w.canvas.Controls() {
		st.Controls = append(st.Controls, c.Name())
	}
	return st
}
