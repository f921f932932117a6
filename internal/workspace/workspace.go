// Package workspace hosts one interactive isochrone session: the point list,
// the profile selector, the range controls and the map they render onto.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reachmap/reachmap/internal/export"
	"github.com/reachmap/reachmap/internal/geo"
	"github.com/reachmap/reachmap/internal/isochrone"
	"github.com/reachmap/reachmap/internal/mapview"
	"github.com/reachmap/reachmap/internal/pointlist"
	"github.com/reachmap/reachmap/internal/widget/form"
	"github.com/reachmap/reachmap/internal/widget/selectbox"
)

// Workspace errors.
var (
	// ErrSuperseded is returned by a build whose response arrived after a
	// newer build was started. Its result is discarded.
	ErrSuperseded = errors.New("build superseded by a newer request")
	// ErrNothingToExport is returned before the first successful build.
	ErrNothingToExport = export.ErrNothingToExport
)

// Widget identifiers.
const (
	ProfileSelectID = "profile"
	RangeToggleName = "range-distance"
	TimeFieldName   = "time"
	DistanceField   = "distance"
)

// Default magnitudes prefilled in the range fields.
const (
	DefaultMinutes = "15"
	DefaultMeters  = "1000"
)

// Default map view.
var (
	DefaultCenter = geo.Coordinate{Lon: 30.337, Lat: 59.932}
	DefaultZoom   = 12.0
)

const (
	isochroneZIndex = 500
	pointsZIndex    = 1000
)

var pointsStyle = mapview.Style{
	StrokeColor:  "#ffffff",
	StrokeWidth:  2,
	FillColor:    "#3F51B5",
	MarkerRadius: 6,
}

// IsochroneService computes isochrones.
type IsochroneService interface {
	Isochrones(ctx context.Context, req isochrone.Request) (*isochrone.Result, error)
}

// Config configures a Workspace.
type Config struct {
	ID      string
	Service IsochroneService
	// Viewport is copied; defaults to a Web Mercator view of DefaultCenter.
	Viewport *geo.Viewport
	// Layout measures the profile dropdown; defaults to DefaultLayout.
	Layout selectbox.Layout
	// Limits bounds the magnitude; defaults to isochrone.DefaultLimits.
	Limits *isochrone.Limits
	// Scheduler runs pick-preview expiry; defaults to real timers.
	Scheduler    pointlist.Scheduler
	PreviewDelay time.Duration
	// Publisher, when set, is told about every export.
	Publisher export.Publisher
	Logger    zerolog.Logger
}

// MessageKind classifies the user-visible message.
type MessageKind string

// Message kinds.
const (
	MessageError MessageKind = "error"
	MessageInfo  MessageKind = "info"
)

// Message is the inline notice shown next to the build button.
type Message struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
}

// Workspace is one user session. All methods are safe for concurrent use; a
// build releases the lock while the provider is working so the session stays
// editable.
type Workspace struct {
	id        string
	service   IsochroneService
	limits    isochrone.Limits
	publisher export.Publisher
	logger    zerolog.Logger
	createdAt time.Time

	mu         sync.Mutex
	canvas     *mapview.Canvas
	points     *pointlist.Manager
	registry   *selectbox.Registry
	profile    *selectbox.Select
	rangeType  *form.Checkbox
	minutes    *form.Field
	meters     *form.Field
	options    isochrone.Options
	message    *Message
	generation uint64
	inFlight   int
	result     *isochrone.Result
	exportCtl  *export.Control
	lastActive time.Time
}

// New creates a workspace with one default point, the walking profile and a
// 15 minute time budget.
func New(cfg Config) *Workspace {
	logger := cfg.Logger.With().Str("workspace_id", cfg.ID).Logger()

	var viewport *geo.Viewport
	if cfg.Viewport != nil {
		viewport = cfg.Viewport.Clone()
	} else {
		viewport = geo.NewViewport(geo.WebMercator{}, DefaultCenter, DefaultZoom, 1280, 800)
	}
	limits := isochrone.DefaultLimits
	if cfg.Limits != nil {
		limits = *cfg.Limits
	}
	layout := cfg.Layout
	if layout == nil {
		layout = DefaultLayout()
	}

	now := time.Now()
	w := &Workspace{
		id:         cfg.ID,
		service:    cfg.Service,
		limits:     limits,
		publisher:  cfg.Publisher,
		logger:     logger,
		createdAt:  now,
		lastActive: now,
		canvas:     mapview.NewCanvas(viewport),
		registry:   selectbox.NewRegistry(),
	}

	w.points = pointlist.NewManager(pointlist.Config{
		Map:          w.canvas,
		Scheduler:    cfg.Scheduler,
		PreviewDelay: cfg.PreviewDelay,
		Logger:       logger,
	})

	w.profile = selectbox.New(selectbox.Config{
		ID:           ProfileSelectID,
		Label:        "Profile",
		Placeholder:  "Choose a profile",
		Items:        profileOptions(),
		DefaultValue: string(isochrone.ProfileWalking),
		Required:     true,
		RequiredText: "Choose a travel profile",
		Search:       true,
		Layout:       layout,
		Registry:     w.registry,
	})

	one := 1.0
	w.minutes = form.NewField(form.FieldConfig{
		Name:  TimeFieldName,
		Label: "Time, minutes",
		Value: DefaultMinutes,
		Min:   &one,
	})
	w.meters = form.NewField(form.FieldConfig{
		Name:   DistanceField,
		Label:  "Distance, metres",
		Value:  DefaultMeters,
		Min:    &one,
		Hidden: true,
	})
	w.rangeType = form.NewCheckbox(form.CheckboxConfig{
		Name:  RangeToggleName,
		Label: "Measure by distance",
		OnChange: func(distance bool) {
			// Exactly one magnitude field is visible; the hidden one keeps its value.
			w.minutes.SetHidden(distance)
			w.meters.SetHidden(!distance)
		},
	})

	return w
}

// DefaultLayout is used when a front-end reports no measurements.
func DefaultLayout() *selectbox.FixedLayout {
	return &selectbox.FixedLayout{
		Trigger:      selectbox.Rect{Top: 160, Left: 16, Width: 280, Height: 40},
		Viewport:     800,
		ItemHeight:   36,
		HeaderHeight: 44,
	}
}

func profileOptions() []selectbox.Option {
	profiles := isochrone.Profiles()
	opts := make([]selectbox.Option, len(profiles))
	for i, p := range profiles {
		opts[i] = selectbox.Option{Title: p.Title(), Value: string(p), Hint: p.Color()}
	}
	return opts
}

// ID returns the workspace identifier.
func (w *Workspace) ID() string { return w.id }

// CreatedAt returns the creation time.
func (w *Workspace) CreatedAt() time.Time { return w.createdAt }

// LastActive returns the time of the latest interaction.
func (w *Workspace) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// touch must be called with mu held.
func (w *Workspace) touch() {
	w.lastActive = time.Now()
}

// Canvas exposes the map the workspace renders onto.
func (w *Workspace) Canvas() *mapview.Canvas { return w.canvas }

// Close releases pick subscriptions and preview timers.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points.Close()
	w.registry.Unregister(w.profile)
}
