// Package form provides the value-holding form primitives used by the
// workbench widgets: text fields, checkboxes and buttons.
//
// Primitives are not safe for concurrent use; the owning workspace serialises
// access to them.
package form

import (
	"strconv"
	"strings"
)

// ChangeFunc is notified with the new value after a change.
type ChangeFunc func(value string)

// FieldConfig configures a text field.
type FieldConfig struct {
	Name         string
	Label        string
	Placeholder  string
	Value        string
	Required     bool
	RequiredText string
	Disabled     bool
	Hidden       bool
	// Min, when set, clamps numeric input below it on Blur.
	Min *float64
}

// Field is a single-line text input.
type Field struct {
	cfg      FieldConfig
	value    string
	disabled bool
	hidden   bool
	invalid  bool
	errText  string
	onChange []ChangeFunc
}

// NewField creates a text field.
func NewField(cfg FieldConfig) *Field {
	f := &Field{
		cfg:      cfg,
		disabled: cfg.Disabled,
		hidden:   cfg.Hidden,
	}
	f.value = f.clamp(cfg.Value)
	return f
}

// Name returns the field name.
func (f *Field) Name() string { return f.cfg.Name }

// Label returns the field label.
func (f *Field) Label() string { return f.cfg.Label }

// Value returns the raw text.
func (f *Field) Value() string { return f.value }

// SetValue replaces the text and notifies change listeners. A required field
// that becomes non-empty leaves its error state.
func (f *Field) SetValue(v string) {
	if v == f.value {
		return
	}
	f.value = v
	if f.cfg.Required {
		if v == "" {
			f.SetInvalid(f.cfg.RequiredText)
		} else {
			f.ClearInvalid()
		}
	}
	for _, fn := range f.onChange {
		fn(v)
	}
}

// Blur trims surrounding whitespace and applies the minimum clamp.
func (f *Field) Blur() {
	f.SetValue(f.clamp(strings.TrimSpace(f.value)))
}

// Float parses the value as a float64.
func (f *Field) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(f.value), 64)
}

// OnChange registers a change listener.
func (f *Field) OnChange(fn ChangeFunc) {
	f.onChange = append(f.onChange, fn)
}

// Enable allows editing.
func (f *Field) Enable() { f.disabled = false }

// Disable prevents editing.
func (f *Field) Disable() { f.disabled = true }

// Disabled reports whether editing is blocked.
func (f *Field) Disabled() bool { return f.disabled }

// SetHidden hides or shows the field.
func (f *Field) SetHidden(h bool) { f.hidden = h }

// Hidden reports whether the field is hidden.
func (f *Field) Hidden() bool { return f.hidden }

// SetInvalid flags the field with a message.
func (f *Field) SetInvalid(msg string) {
	f.invalid = true
	f.errText = msg
}

// ClearInvalid removes the error highlight.
func (f *Field) ClearInvalid() {
	f.invalid = false
	f.errText = ""
}

// Invalid reports whether the field is highlighted as erroneous.
func (f *Field) Invalid() bool { return f.invalid }

// ErrorText returns the message shown under an invalid field.
func (f *Field) ErrorText() string { return f.errText }

func (f *Field) clamp(v string) string {
	if f.cfg.Min == nil {
		return v
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n >= *f.cfg.Min {
		return v
	}
	return strconv.FormatFloat(*f.cfg.Min, 'f', -1, 64)
}

// FieldState is a serialisable snapshot of a field.
type FieldState struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
	Hidden   bool   `json:"hidden,omitempty"`
	Invalid  bool   `json:"invalid,omitempty"`
	Error    string `json:"error,omitempty"`
}

// State snapshots the field.
func (f *Field) State() FieldState {
	return FieldState{
		Name:     f.cfg.Name,
		Value:    f.value,
		Disabled: f.disabled,
		Hidden:   f.hidden,
		Invalid:  f.invalid,
		Error:    f.errText,
	}
}
