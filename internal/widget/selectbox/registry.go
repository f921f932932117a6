package selectbox

import "sync"

// Registry tracks the select widgets of one screen and owns the single open
// overlay. Opening a widget through the registry closes whichever widget was
// open before, and one shared outside-click handler serves every widget.
type Registry struct {
	mu      sync.Mutex
	widgets map[string]*Select
	active  *Select
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{widgets: make(map[string]*Select)}
}

// Register adds a widget. Registering a new widget under an existing ID
// replaces the old one.
func (r *Registry) Register(s *Select) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[s.ID()] = s
}

// Unregister removes a widget, closing it first if it is open.
func (r *Registry) Unregister(s *Select) {
	r.mu.Lock()
	if r.widgets[s.ID()] == s {
		delete(r.widgets, s.ID())
	}
	wasActive := r.active == s
	if wasActive {
		r.active = nil
	}
	r.mu.Unlock()

	if wasActive {
		s.detach()
	}
}

// Get returns the widget registered under id.
func (r *Registry) Get(id string) (*Select, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.widgets[id]
	return s, ok
}

// Len returns the number of registered widgets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.widgets)
}

// Active returns the widget whose overlay is open, if any.
func (r *Registry) Active() *Select {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// activate makes s the open widget and closes the previous one.
func (r *Registry) activate(s *Select) {
	r.mu.Lock()
	prev := r.active
	r.active = s
	r.mu.Unlock()

	if prev != nil && prev != s {
		prev.detach()
	}
}

// deactivate clears s as the open widget if it still is.
func (r *Registry) deactivate(s *Select) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == s {
		r.active = nil
	}
}

// OutsideClick is the shared document click handler. It closes the open
// overlay unless the click landed in that overlay's search field, and reports
// whether an overlay was closed.
func (r *Registry) OutsideClick(target string) bool {
	r.mu.Lock()
	active := r.active
	if active == nil || target == active.SearchTarget() {
		r.mu.Unlock()
		return false
	}
	r.active = nil
	r.mu.Unlock()

	active.detach()
	return true
}
