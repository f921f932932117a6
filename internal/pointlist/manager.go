// Package pointlist manages the ordered, user-editable list of isochrone
// origin points and the map-click capture used to fill them in.
package pointlist

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reachmap/reachmap/internal/geo"
	"github.com/reachmap/reachmap/internal/mapview"
	"github.com/reachmap/reachmap/internal/widget/form"
)

// ErrEntryNotFound is returned for an unknown point ID.
var ErrEntryNotFound = errors.New("point not found")

// Default origin shown in the first entry.
const (
	DefaultLon = "30.337"
	DefaultLat = "59.932"
)

// Entry is one editable point of the list.
type Entry struct {
	id     string
	lon    *form.Field
	lat    *form.Field
	remove *form.Button
}

// ID returns the entry identifier.
func (e *Entry) ID() string { return e.id }

// Lon returns the longitude field.
func (e *Entry) Lon() *form.Field { return e.lon }

// Lat returns the latitude field.
func (e *Entry) Lat() *form.Field { return e.lat }

// Deletable reports whether the delete affordance is enabled.
func (e *Entry) Deletable() bool { return !e.remove.Disabled() }

// Coordinate parses the fields; unparsable values become NaN.
func (e *Entry) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lon: parseFloat(e.lon), Lat: parseFloat(e.lat)}
}

func parseFloat(f *form.Field) float64 {
	v, err := f.Float()
	if err != nil {
		return math.NaN()
	}
	return v
}

// EntryState is a serialisable snapshot of an entry.
type EntryState struct {
	ID        string          `json:"id"`
	Lon       form.FieldState `json:"lon"`
	Lat       form.FieldState `json:"lat"`
	Deletable bool            `json:"deletable"`
	Picking   bool            `json:"picking,omitempty"`
}

// Config configures a Manager.
type Config struct {
	Map mapview.Map
	// Scheduler runs preview-marker removal; defaults to time.AfterFunc.
	Scheduler    Scheduler
	PreviewDelay time.Duration
	// InitialLon/InitialLat prefill the first entry.
	InitialLon string
	InitialLat string
	Logger     zerolog.Logger
}

// Manager owns the ordered point list. The list never becomes empty.
// It is not safe for concurrent use.
type Manager struct {
	entries []*Entry
	pick    *PickMode
	logger  zerolog.Logger
}

// NewManager creates a list holding one initial entry.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		pick:   NewPickMode(cfg.Map, cfg.Scheduler, cfg.PreviewDelay, cfg.Logger),
		logger: cfg.Logger,
	}
	lon, lat := cfg.InitialLon, cfg.InitialLat
	if lon == "" && lat == "" {
		lon, lat = DefaultLon, DefaultLat
	}
	m.appendEntry(lon, lat)
	return m
}

// Add appends a point, optionally prefilled.
func (m *Manager) Add(lon, lat *float64) *Entry {
	e := m.appendEntry(formatOptional(lon), formatOptional(lat))
	m.logger.Debug().Str("point_id", e.id).Int("count", len(m.entries)).Msg("point added")
	return e
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (m *Manager) appendEntry(lon, lat string) *Entry {
	id := "pt_" + uuid.New().String()[:8]
	e := &Entry{
		id:  id,
		lon: form.NewField(form.FieldConfig{Name: id + ":lon", Label: "Longitude", Value: lon}),
		lat: form.NewField(form.FieldConfig{Name: id + ":lat", Label: "Latitude", Value: lat}),
	}
	e.remove = form.NewButton("Delete", func() { m.removeEntry(id) })
	m.entries = append(m.entries, e)
	m.refreshDeletable()
	return e
}

// Remove deletes a point unless it is the last one. It reports whether the
// point was removed.
func (m *Manager) Remove(id string) (bool, error) {
	e, _, ok := m.find(id)
	if !ok {
		return false, ErrEntryNotFound
	}
	return e.remove.Click(), nil
}

func (m *Manager) removeEntry(id string) {
	if len(m.entries) <= 1 {
		return
	}
	_, idx, ok := m.find(id)
	if !ok {
		return
	}
	if pending, active := m.pick.Pending(); active && pending == id {
		m.pick.Cancel()
	}
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	m.refreshDeletable()
	m.logger.Debug().Str("point_id", id).Int("count", len(m.entries)).Msg("point removed")
}

// refreshDeletable recomputes every delete affordance from the current count.
func (m *Manager) refreshDeletable() {
	single := len(m.entries) == 1
	for _, e := range m.entries {
		e.remove.SetDisabled(single)
	}
}

// SetCoordinates writes raw field text, as typed by the user.
func (m *Manager) SetCoordinates(id, lon, lat string) error {
	e, _, ok := m.find(id)
	if !ok {
		return ErrEntryNotFound
	}
	e.lon.SetValue(lon)
	e.lat.SetValue(lat)
	return nil
}

// EnterPickMode fills the entry from the next map click.
func (m *Manager) EnterPickMode(id string) error {
	if _, _, ok := m.find(id); !ok {
		return ErrEntryNotFound
	}
	m.pick.Activate(id, func(c geo.Coordinate) {
		// The entry may have been removed while waiting.
		e, _, ok := m.find(id)
		if !ok {
			return
		}
		e.lon.SetValue(strconv.FormatFloat(c.Lon, 'f', -1, 64))
		e.lat.SetValue(strconv.FormatFloat(c.Lat, 'f', -1, 64))
		e.lon.ClearInvalid()
		e.lat.ClearInvalid()
	})
	return nil
}

// PickMode exposes the map-click capture.
func (m *Manager) PickMode() *PickMode { return m.pick }

// Coordinates parses every entry in list order. It does not validate.
func (m *Manager) Coordinates() []geo.Coordinate {
	out := make([]geo.Coordinate, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Coordinate()
	}
	return out
}

// Entries returns the entries in list order.
func (m *Manager) Entries() []*Entry {
	return append([]*Entry(nil), m.entries...)
}

// Entry returns the entry with the given ID.
func (m *Manager) Entry(id string) (*Entry, bool) {
	e, _, ok := m.find(id)
	return e, ok
}

// Len returns the number of entries.
func (m *Manager) Len() int { return len(m.entries) }

// State snapshots the list.
func (m *Manager) State() []EntryState {
	picking, active := m.pick.Pending()
	out := make([]EntryState, len(m.entries))
	for i, e := range m.entries {
		out[i] = EntryState{
			ID:        e.id,
			Lon:       e.lon.State(),
			Lat:       e.lat.State(),
			Deletable: e.Deletable(),
			Picking:   active && picking == e.id,
		}
	}
	return out
}

// Close releases the pick subscription and preview timers.
func (m *Manager) Close() {
	m.pick.Close()
}

func (m *Manager) find(id string) (*Entry, int, bool) {
	for i, e := range m.entries {
		if e.id == id {
			return e, i, true
		}
	}
	return nil, -1, false
}
