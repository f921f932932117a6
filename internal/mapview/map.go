package mapview

import (
	"github.com/reachmap/reachmap/internal/geo"
)

// ClickEvent is a single click on the map surface.
type ClickEvent struct {
	Pixel geo.Pixel
	// Coordinate is the clicked position in the map's projection.
	Coordinate geo.Planar
}

// ClickHandler receives a map click.
type ClickHandler func(ClickEvent)

// Subscription is a pending click subscription.
type Subscription interface {
	// Cancel removes the subscription if it has not fired yet.
	Cancel()
}

// Control is a widget attached to the map chrome, addressed by name.
type Control interface {
	Name() string
}

// Map is the host map consumed by the workbench. It does not own rendering;
// implementations mirror layer changes onto whatever draws them.
type Map interface {
	AddLayer(l *Layer)
	// RemoveLayer removes every layer tagged with name and reports whether any existed.
	RemoveLayer(name string) bool
	Layer(name string) (*Layer, bool)
	Layers() []*Layer

	// OnceClick subscribes h to the next click only.
	OnceClick(h ClickHandler) Subscription

	AddControl(c Control)
	RemoveControl(name string) bool
	Controls() []Control

	// Projection is the projection currently used by the map view.
	Projection() geo.Projection
}
