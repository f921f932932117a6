package selectbox

import (
	"errors"
	"math"
)

// ErrMeasureUnavailable is returned by a Layout that cannot measure rendered content.
var ErrMeasureUnavailable = errors.New("layout measurement unavailable")

// Rect is an axis-aligned box in viewport units.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the lower edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Layout answers geometry questions about the rendering surface. Production
// front-ends query the real document; tests supply fixed measurements.
type Layout interface {
	// TriggerRect is the bounding box of the widget's trigger container.
	TriggerRect() Rect
	// ViewportHeight is the visible height of the rendering surface.
	ViewportHeight() float64
	// ItemHeights returns the rendered heights of the given option rows, in order.
	ItemHeights(items []Option) ([]float64, error)
	// MeasureOverlay returns the rendered height of an attached overlay.
	MeasureOverlay(o *Overlay) (float64, error)
	// ZIndices lists the z-index of every element currently in the document.
	// Non-numeric values ("auto") are reported as NaN.
	ZIndices() []float64
}

// FixedLayout is a Layout with constant measurements.
type FixedLayout struct {
	Trigger  Rect
	Viewport float64
	// ItemHeight is the height of every option row.
	ItemHeight float64
	// HeaderHeight is added to the overlay height, e.g. for a search field.
	HeaderHeight float64
	ZIndex       []float64
	// Unmeasurable makes ItemHeights fail.
	Unmeasurable bool
}

// TriggerRect implements Layout.
func (l *FixedLayout) TriggerRect() Rect { return l.Trigger }

// ViewportHeight implements Layout.
func (l *FixedLayout) ViewportHeight() float64 { return l.Viewport }

// ItemHeights implements Layout.
func (l *FixedLayout) ItemHeights(items []Option) ([]float64, error) {
	if l.Unmeasurable {
		return nil, ErrMeasureUnavailable
	}
	heights := make([]float64, len(items))
	for i := range heights {
		heights[i] = l.ItemHeight
	}
	return heights, nil
}

// MeasureOverlay implements Layout.
func (l *FixedLayout) MeasureOverlay(o *Overlay) (float64, error) {
	h := float64(len(o.Items)) * l.ItemHeight
	if o.MaxHeight > 0 && h > o.MaxHeight {
		h = o.MaxHeight
	}
	if o.Search != nil {
		h += l.HeaderHeight
	}
	return h, nil
}

// ZIndices implements Layout.
func (l *FixedLayout) ZIndices() []float64 { return l.ZIndex }

// nextZIndex returns one more than the highest numeric z-index in use.
func nextZIndex(values []float64) int {
	highest := 0.0
	for _, z := range values {
		if math.IsNaN(z) || math.IsInf(z, 0) {
			continue
		}
		if z > highest {
			highest = z
		}
	}
	return int(highest) + 1
}
