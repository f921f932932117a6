// Package selectbox implements a single-choice dropdown widget with adaptive
// overlay positioning, optional search filtering and one-open-overlay
// discipline across all widgets of a Registry.
package selectbox

import (
	"errors"
	"strings"

	"github.com/reachmap/reachmap/internal/widget/form"
)

// Widget errors.
var (
	ErrClosed         = errors.New("select overlay is not open")
	ErrUnknownOption  = errors.New("option not available")
	ErrSearchDisabled = errors.New("search is not enabled for this select")
)

// Defaults taken from the dropdown's reference styling.
const (
	DefaultVisibleItems = 8
	// FallbackListHeight is used when option rows cannot be measured.
	FallbackListHeight = 180
	// listPadding is the border allowance added to the capped list height.
	listPadding = 2
	// bigHeaderAllowance is the extra upward offset for big widgets.
	bigHeaderAllowance = 40
)

// Option is one selectable entry. Options are compared by Value.
type Option struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Hint  string `json:"hint,omitempty"`
}

// Selection is passed to OnSelect.
type Selection struct {
	Option Option
	// Target identifies the element that originated the click.
	Target string
}

// Config configures a Select.
type Config struct {
	ID          string
	Label       string
	Placeholder string
	Items       []Option
	// DefaultValue preselects the first option with this value (case-insensitive).
	DefaultValue string
	// VisibleItems caps the list viewport; defaults to DefaultVisibleItems.
	VisibleItems int
	Required     bool
	RequiredText string
	Disabled     bool
	// Big widgets render taller and need extra room when flipping up.
	Big bool
	// Search enables the filter field inside the overlay.
	Search   bool
	Layout   Layout
	Registry *Registry
	OnSelect func(Selection)
}

// Overlay is the detached panel shown while the widget is open.
type Overlay struct {
	Top       float64 `json:"top"`
	Left      float64 `json:"left"`
	Width     float64 `json:"width"`
	MarginTop float64 `json:"marginTop"`
	ZIndex    int     `json:"zIndex"`
	DropUp    bool    `json:"dropUp"`
	// MaxHeight caps the option list; zero means uncapped.
	MaxHeight  float64     `json:"maxHeight,omitempty"`
	Scrollable bool        `json:"scrollable"`
	Search     *form.Field `json:"-"`
	Items      []Option    `json:"items"`
}

// snapshot copies the overlay so it can outlive the widget's lock. The search
// field is left out.
func (o *Overlay) snapshot() *Overlay {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Option(nil), o.Items...)
	c.Search = nil
	return &c
}

// EffectiveTop is the overlay's rendered top edge.
func (o *Overlay) EffectiveTop() float64 {
	return o.Top + o.MarginTop
}

// Select is a dropdown widget. It is not safe for concurrent use.
type Select struct {
	cfg      Config
	items    []Option
	selected *Option
	open     bool
	overlay  *Overlay
	query    string
	disabled bool
	errState bool
	errMsg   string
	registry *Registry
}

// New creates a Select and registers it with cfg.Registry. Options without a
// value are dropped.
func New(cfg Config) *Select {
	if cfg.VisibleItems <= 0 {
		cfg.VisibleItems = DefaultVisibleItems
	}
	if cfg.Layout == nil {
		cfg.Layout = &FixedLayout{}
	}
	reg := cfg.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	s := &Select{
		cfg:      cfg,
		disabled: cfg.Disabled,
		registry: reg,
	}
	s.SetItems(cfg.Items)
	if cfg.DefaultValue != "" {
		s.SetValue(cfg.DefaultValue)
	}
	reg.Register(s)
	return s
}

// ID returns the widget identifier.
func (s *Select) ID() string { return s.cfg.ID }

// SearchTarget is the click target of the overlay's search field.
func (s *Select) SearchTarget() string { return s.cfg.ID + ":search" }

// TriggerTarget is the click target of the trigger element.
func (s *Select) TriggerTarget() string { return s.cfg.ID + ":trigger" }

// SetLayout replaces the layout used from the next open on.
func (s *Select) SetLayout(l Layout) {
	if l != nil {
		s.cfg.Layout = l
	}
}

// Items returns the canonical option set.
func (s *Select) Items() []Option {
	return append([]Option(nil), s.items...)
}

// SetItems replaces the canonical option set.
func (s *Select) SetItems(items []Option) {
	s.items = s.items[:0]
	for _, it := range items {
		if it.Value == "" {
			continue
		}
		s.items = append(s.items, it)
	}
	if s.open {
		s.overlay.Items = s.filter(s.query)
	}
}

// Selected returns the current selection.
func (s *Select) Selected() (Option, bool) {
	if s.selected == nil {
		return Option{}, false
	}
	return *s.selected, true
}

// SetValue selects the first option whose value matches case-insensitively
// without firing OnSelect. It reports whether a match was found.
func (s *Select) SetValue(value string) bool {
	for _, it := range s.items {
		if strings.EqualFold(it.Value, value) {
			opt := it
			s.selected = &opt
			return true
		}
	}
	return false
}

// ClearSelection removes the selection, showing the placeholder again.
func (s *Select) ClearSelection() {
	s.selected = nil
}

// IsOpen reports whether the overlay is shown.
func (s *Select) IsOpen() bool { return s.open }

// Overlay returns the open overlay, or nil.
func (s *Select) Overlay() *Overlay { return s.overlay }

// Enable allows opening the widget.
func (s *Select) Enable() { s.disabled = false }

// Disable closes the widget and blocks opening it.
func (s *Select) Disable() {
	s.disabled = true
	s.Close()
}

// Disabled reports whether the widget is disabled.
func (s *Select) Disabled() bool { return s.disabled }

// Toggle handles a click on the trigger: it closes an open overlay and opens
// a closed one.
func (s *Select) Toggle() (*Overlay, error) {
	if s.open {
		s.Close()
		return nil, nil
	}
	return s.Open()
}

// Open shows the overlay, closing any other open widget of the registry.
// Opening a disabled or already open widget is a no-op.
func (s *Select) Open() (*Overlay, error) {
	if s.disabled {
		return nil, nil
	}
	if s.open {
		return s.overlay, nil
	}
	s.registry.activate(s)

	layout := s.cfg.Layout
	trigger := layout.TriggerRect()

	// First pass: attach below the trigger.
	o := &Overlay{
		Top:    trigger.Bottom(),
		Left:   trigger.Left,
		Width:  trigger.Width,
		ZIndex: nextZIndex(layout.ZIndices()),
	}
	if s.cfg.Big {
		o.MarginTop = trigger.Height
	}
	if s.cfg.Search {
		o.Search = form.NewField(form.FieldConfig{
			Name:        s.SearchTarget(),
			Placeholder: "Search",
		})
	}
	s.query = ""
	o.Items = s.filter("")
	s.capList(o)

	// Second pass: the height is only known once laid out.
	height, err := layout.MeasureOverlay(o)
	if err == nil && layout.ViewportHeight()-trigger.Bottom() < height {
		allowance := 0.0
		if s.cfg.Big {
			allowance = bigHeaderAllowance
		}
		o.Top = trigger.Top
		o.MarginTop = -(height + allowance)
		o.DropUp = true
	}

	s.overlay = o
	s.open = true
	return o, nil
}

// capList limits the list viewport to the first VisibleItems rows.
func (s *Select) capList(o *Overlay) {
	if len(s.items) <= s.cfg.VisibleItems {
		return
	}
	height := float64(listPadding)
	heights, err := s.cfg.Layout.ItemHeights(o.Items)
	if err != nil || len(heights) < s.cfg.VisibleItems {
		height = FallbackListHeight
	} else {
		for _, h := range heights[:s.cfg.VisibleItems] {
			height += h
		}
	}
	o.MaxHeight = height
	o.Scrollable = true
}

// Close hides the overlay.
func (s *Select) Close() {
	if !s.open {
		return
	}
	s.registry.deactivate(s)
	s.detach()
}

// detach drops the overlay without touching the registry.
func (s *Select) detach() {
	s.open = false
	s.overlay = nil
	s.query = ""
}

// Search filters the visible options by case-insensitive substring match on
// the title. The canonical option set is left untouched.
func (s *Select) Search(query string) ([]Option, error) {
	if !s.cfg.Search {
		return nil, ErrSearchDisabled
	}
	if !s.open {
		return nil, ErrClosed
	}
	s.query = query
	s.overlay.Search.SetValue(query)
	s.overlay.Items = s.filter(query)
	return append([]Option(nil), s.overlay.Items...), nil
}

// Visible returns the options currently listed in the overlay.
func (s *Select) Visible() []Option {
	if !s.open {
		return nil
	}
	return append([]Option(nil), s.overlay.Items...)
}

func (s *Select) filter(query string) []Option {
	if query == "" {
		return append([]Option(nil), s.items...)
	}
	q := strings.ToLower(query)
	out := make([]Option, 0, len(s.items))
	for _, it := range s.items {
		if strings.Contains(strings.ToLower(it.Title), q) {
			out = append(out, it)
		}
	}
	return out
}

// Select handles a click on a listed option: it becomes the only selected
// option, OnSelect fires and the overlay closes.
func (s *Select) Select(value, target string) (Option, error) {
	if !s.open {
		return Option{}, ErrClosed
	}
	var picked *Option
	for _, it := range s.overlay.Items {
		if it.Value == value {
			opt := it
			picked = &opt
			break
		}
	}
	if picked == nil {
		return Option{}, ErrUnknownOption
	}

	s.selected = picked
	s.Close()
	s.clearRequiredError()
	if s.cfg.OnSelect != nil {
		s.cfg.OnSelect(Selection{Option: *picked, Target: target})
	}
	return *picked, nil
}

// Validate reports whether the widget satisfies its required constraint and
// enters the error state when it does not.
func (s *Select) Validate() bool {
	if !s.cfg.Required || s.selected != nil {
		return true
	}
	s.errState = true
	s.errMsg = s.cfg.RequiredText
	return false
}

func (s *Select) clearRequiredError() {
	s.errState = false
	s.errMsg = ""
}

// SetError shows an arbitrary error message; an empty message hides it.
func (s *Select) SetError(msg string) {
	s.errState = msg != ""
	s.errMsg = msg
}

// InError reports whether the widget is highlighted as invalid.
func (s *Select) InError() bool { return s.errState }

// State is a serialisable snapshot of the widget.
type State struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Items       []Option `json:"items"`
	Selected    *Option  `json:"selected,omitempty"`
	Open        bool     `json:"open"`
	Query       string   `json:"query,omitempty"`
	Disabled    bool     `json:"disabled,omitempty"`
	Error       bool     `json:"error,omitempty"`
	ErrorText   string   `json:"errorText,omitempty"`
	Overlay     *Overlay `json:"overlay,omitempty"`
}

// State snapshots the widget.
func (s *Select) State() State {
	st := State{
		ID:          s.cfg.ID,
		Label:       s.cfg.Label,
		Placeholder: s.cfg.Placeholder,
		Items:       s.Items(),
		Open:        s.open,
		Query:       s.query,
		Disabled:    s.disabled,
		Error:       s.errState,
		ErrorText:   s.errMsg,
		Overlay:     s.overlay.snapshot(),
	}
	if s.selected != nil {
		sel := *s.selected
		st.Selected = &sel
	}
	return st
}
