package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachmap/reachmap/internal/isochrone"
)

func sampleResult() *isochrone.Result {
	f := geojson.NewFeature(orb.Polygon{{{30.3, 59.9}, {30.4, 59.9}, {30.4, 60.0}, {30.3, 59.9}}})
	f.Properties[isochrone.PropTimeMinutes] = 15.0
	f.Properties[isochrone.PropProfile] = "foot-walking"
	f.Properties[isochrone.PropGroupIndex] = 0
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return &isochrone.Result{
		Features:  fc,
		Profile:   isochrone.ProfileWalking,
		RangeType: isochrone.RangeTime,
		Provider:  "openrouteservice",
	}
}

func TestFilename(t *testing.T) {
	ts := time.Date(2026, 3, 7, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	assert.Equal(t, "isochrone_2026-03-08.geojson", Filename(ts))
	assert.Regexp(t, `^isochrone_\d{4}-\d{2}-\d{2}\.geojson$`, Filename(time.Now()))
}

func TestNew_SerializesFeatureCollection(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	a, err := New(sampleResult(), now)
	require.NoError(t, err)

	assert.Equal(t, "isochrone_2026-10-19.geojson", a.Filename)
	assert.Equal(t, ContentType, a.ContentType)
	assert.Equal(t, 1, a.Features)

	fc, err := geojson.UnmarshalFeatureCollection(a.Data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	props := fc.Features[0].Properties
	assert.Equal(t, 15.0, props[isochrone.PropTimeMinutes])
	assert.Equal(t, "foot-walking", props[isochrone.PropProfile])
	assert.NotContains(t, props, isochrone.PropGroupIndex)
	assert.IsType(t, orb.Polygon{}, fc.Features[0].Geometry)
}

func TestNew_NothingToExport(t *testing.T) {
	_, err := New(nil, time.Now())
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestControl_ExportsBoundResult(t *testing.T) {
	first := sampleResult()
	c := NewControl(first)
	c.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, ControlName, c.Name())
	assert.Same(t, first, c.Result())

	a, err := c.Export()
	require.NoError(t, err)
	assert.Equal(t, "isochrone_2026-01-02.geojson", a.Filename)
}

func TestNewMessage(t *testing.T) {
	a, err := New(sampleResult(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	msg, err := newMessage(NewEvent("ws_1", a))
	require.NoError(t, err)

	assert.Equal(t, EventType, msg.Attributes["type"])
	assert.Equal(t, "foot-walking", msg.Attributes["profile"])
	assert.Equal(t, "1", msg.Attributes["features"])

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "ws_1", ev.WorkspaceID)
	assert.Equal(t, a.Filename, ev.Filename)
	assert.Equal(t, len(a.Data), ev.Bytes)
}
