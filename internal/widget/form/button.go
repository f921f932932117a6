package form

// Button is a clickable action that can be disabled, e.g. a point's delete
// affordance or the build trigger.
type Button struct {
	Text     string
	disabled bool
	onClick  func()
}

// NewButton creates a button.
func NewButton(text string, onClick func()) *Button {
	return &Button{Text: text, onClick: onClick}
}

// Click runs the handler unless the button is disabled.
func (b *Button) Click() bool {
	if b.disabled || b.onClick == nil {
		return false
	}
	b.onClick()
	return true
}

// SetDisabled enables or disables the button.
func (b *Button) SetDisabled(d bool) { b.disabled = d }

// Disabled reports whether clicks are ignored.
func (b *Button) Disabled() bool { return b.disabled }
