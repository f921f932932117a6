package form

// CheckboxConfig configures a checkbox.
type CheckboxConfig struct {
	Name     string
	Label    string
	Checked  bool
	Disabled bool
	OnChange func(checked bool)
}

// Checkbox is a boolean toggle.
type Checkbox struct {
	cfg      CheckboxConfig
	checked  bool
	disabled bool
}

// NewCheckbox creates a checkbox.
func NewCheckbox(cfg CheckboxConfig) *Checkbox {
	return &Checkbox{cfg: cfg, checked: cfg.Checked, disabled: cfg.Disabled}
}

// Checked reports the current state.
func (c *Checkbox) Checked() bool { return c.checked }

// SetChecked changes the state and fires OnChange when it differs.
// Disabled checkboxes ignore the change.
func (c *Checkbox) SetChecked(v bool) bool {
	if c.disabled || v == c.checked {
		return false
	}
	c.checked = v
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(v)
	}
	return true
}

// SetDisabled enables or disables the checkbox.
func (c *Checkbox) SetDisabled(d bool) { c.disabled = d }

// Disabled reports whether the checkbox accepts changes.
func (c *Checkbox) Disabled() bool { return c.disabled }
