package export

import (
	"time"

	"github.com/reachmap/reachmap/internal/isochrone"
)

// ControlName tags the export control on the map.
const ControlName = "export"

// Control is the map control that downloads one specific result. A new build
// replaces the control rather than mutating it.
type Control struct {
	result *isochrone.Result
	now    func() time.Time
}

// NewControl binds a control to result.
func NewControl(result *isochrone.Result) *Control {
	return &Control{result: result, now: time.Now}
}

// Name implements mapview.Control.
func (c *Control) Name() string { return ControlName }

// Result returns the bound result.
func (c *Control) Result() *isochrone.Result { return c.result }

// Export serializes the bound result.
func (c *Control) Export() (*Artifact, error) {
	return New(c.result, c.now())
}
