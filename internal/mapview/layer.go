// Package mapview defines the map collaborator consumed by the workbench and an
// in-memory implementation that front-ends mirror onto a real map.
package mapview

import (
	"sync"

	"github.com/paulmach/orb/geojson"
)

// Well-known layer names.
const (
	LayerIsochrone   = "isochrone"
	LayerPoints      = "points"
	LayerPickPreview = "pick-preview"
)

// Style describes how a vector layer is drawn.
type Style struct {
	StrokeColor  string  `json:"strokeColor,omitempty"`
	StrokeWidth  float64 `json:"strokeWidth,omitempty"`
	FillColor    string  `json:"fillColor,omitempty"`
	MarkerRadius float64 `json:"markerRadius,omitempty"`
}

// Layer is a named vector layer. Features are stored in EPSG:4326.
type Layer struct {
	name   string
	zIndex int
	style  Style

	mu       sync.RWMutex
	features []*geojson.Feature
	visible  bool
}

// NewLayer creates a visible layer.
func NewLayer(name string, zIndex int, style Style, features ...*geojson.Feature) *Layer {
	return &Layer{
		name:     name,
		zIndex:   zIndex,
		style:    style,
		features: append([]*geojson.Feature(nil), features...),
		visible:  true,
	}
}

// Name returns the layer tag used for lookup and replacement.
func (l *Layer) Name() string { return l.name }

// ZIndex returns the stacking order.
func (l *Layer) ZIndex() int { return l.zIndex }

// Style returns the layer style.
func (l *Layer) Style() Style { return l.style }

// AddFeature appends a feature.
func (l *Layer) AddFeature(f *geojson.Feature) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.features = append(l.features, f)
}

// RemoveFeature removes the feature with the given ID and reports whether it existed.
func (l *Layer) RemoveFeature(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, f := range l.features {
		if f.ID == id {
			l.features = append(l.features[:i], l.features[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all features.
func (l *Layer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.features = nil
}

// Features returns a copy of the feature slice.
func (l *Layer) Features() []*geojson.Feature {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*geojson.Feature(nil), l.features...)
}

// FeatureCount returns the number of features.
func (l *Layer) FeatureCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.features)
}

// SetVisible toggles layer visibility.
func (l *Layer) SetVisible(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.visible = v
}

// Visible reports whether the layer is drawn.
func (l *Layer) Visible() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.visible
}
