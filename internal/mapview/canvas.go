package mapview

import (
	"sync"

	"github.com/reachmap/reachmap/internal/geo"
)

// Canvas is an in-memory Map. Front-ends replay its state onto a real map.
type Canvas struct {
	mu       sync.Mutex
	viewport *geo.Viewport
	layers   []*Layer
	controls []Control
	nextSub  uint64
	pending  map[uint64]ClickHandler
	order    []uint64
}

// NewCanvas creates a canvas over the given viewport.
func NewCanvas(viewport *geo.Viewport) *Canvas {
	return &Canvas{
		viewport: viewport,
		pending:  make(map[uint64]ClickHandler),
	}
}

// AddLayer appends a layer. Layers with the same name may coexist.
func (c *Canvas) AddLayer(l *Layer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers = append(c.layers, l)
}

// RemoveLayer removes every layer tagged with name.
func (c *Canvas) RemoveLayer(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.layers[:0]
	removed := false
	for _, l := range c.layers {
		if l.Name() == name {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	c.layers = kept
	return removed
}

// Layer returns the first layer tagged with name.
func (c *Canvas) Layer(name string) (*Layer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.layers {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}

// Layers returns the layers in insertion order.
func (c *Canvas) Layers() []*Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Layer(nil), c.layers...)
}

// CountLayers returns how many layers carry the given name.
func (c *Canvas) CountLayers(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.layers {
		if l.Name() == name {
			n++
		}
	}
	return n
}

// AddControl attaches a control.
func (c *Canvas) AddControl(ctrl Control) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, ctrl)
}

// RemoveControl detaches every control with the given name.
func (c *Canvas) RemoveControl(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.controls[:0]
	removed := false
	for _, ctrl := range c.controls {
		if ctrl.Name() == name {
			removed = true
			continue
		}
		kept = append(kept, ctrl)
	}
	c.controls = kept
	return removed
}

// Controls returns the attached controls.
func (c *Canvas) Controls() []Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Control(nil), c.controls...)
}

// Projection returns the viewport projection.
func (c *Canvas) Projection() geo.Projection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport.Projection()
}

// SetViewport swaps the view, e.g. after a projection change.
func (c *Canvas) SetViewport(v *geo.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = v
}

// Viewport returns the current view.
func (c *Canvas) Viewport() *geo.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// OnceClick registers h for the next click.
func (c *Canvas) OnceClick(h ClickHandler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.pending[id] = h
	c.order = append(c.order, id)
	return &canvasSubscription{canvas: c, id: id}
}

// PendingClicks returns the number of click subscriptions waiting to fire.
func (c *Canvas) PendingClicks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Click dispatches a click at the given pixel to all pending subscriptions,
// which are consumed before their handlers run.
func (c *Canvas) Click(p geo.Pixel) ClickEvent {
	c.mu.Lock()
	ev := ClickEvent{Pixel: p, Coordinate: c.viewport.PixelToPlanar(p)}
	handlers := make([]ClickHandler, 0, len(c.order))
	for _, id := range c.order {
		if h, ok := c.pending[id]; ok {
			handlers = append(handlers, h)
		}
	}
	c.pending = make(map[uint64]ClickHandler)
	c.order = nil
	c.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return ev
}

func (c *Canvas) cancel(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return
	}
	delete(c.pending, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

type canvasSubscription struct {
	canvas *Canvas
	id     uint64
}

func (s *canvasSubscription) Cancel() {
	s.canvas.cancel(s.id)
}
