package pointlist

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/reachmap/reachmap/internal/geo"
	"github.com/reachmap/reachmap/internal/mapview"
)

// DefaultPreviewDelay is how long the pick preview marker stays on the map.
const DefaultPreviewDelay = 3 * time.Second

// pickDecimals is the precision written into point fields.
const pickDecimals = 3

var previewStyle = mapview.Style{
	StrokeColor:  "#ffffff",
	StrokeWidth:  2,
	FillColor:    "#E91E63",
	MarkerRadius: 6,
}

// PickMode captures the next map click and converts it to a coordinate.
// Only one activation is pending at a time: activating again replaces the
// pending subscription instead of stacking handlers.
type PickMode struct {
	m            mapview.Map
	scheduler    Scheduler
	previewDelay time.Duration
	logger       zerolog.Logger

	mu       sync.Mutex
	pending  mapview.Subscription
	entryID  string
	previews map[string]Task
}

// NewPickMode creates a pick mode bound to a map.
func NewPickMode(m mapview.Map, scheduler Scheduler, previewDelay time.Duration, logger zerolog.Logger) *PickMode {
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	if previewDelay <= 0 {
		previewDelay = DefaultPreviewDelay
	}
	return &PickMode{
		m:            m,
		scheduler:    scheduler,
		previewDelay: previewDelay,
		logger:       logger,
		previews:     make(map[string]Task),
	}
}

// Activate waits for the next map click on behalf of entryID and passes the
// clicked position, rounded to three decimals, to apply.
func (p *PickMode) Activate(entryID string, apply func(geo.Coordinate)) {
	p.mu.Lock()
	if p.pending != nil {
		p.pending.Cancel()
	}
	var sub mapview.Subscription
	sub = p.m.OnceClick(func(ev mapview.ClickEvent) {
		p.mu.Lock()
		if p.pending == sub {
			p.pending = nil
			p.entryID = ""
		}
		p.mu.Unlock()

		// Unproject with whatever projection the view uses right now.
		exact := p.m.Projection().ToLonLat(ev.Coordinate)
		exact.Lon = geo.WrapLon(exact.Lon)
		apply(exact.Round(pickDecimals))
		p.showPreview(exact)

		p.logger.Debug().
			Str("entry_id", entryID).
			Float64("lon", exact.Lon).
			Float64("lat", exact.Lat).
			Msg("map point picked")
	})
	p.pending = sub
	p.entryID = entryID
	p.mu.Unlock()
}

// Pending returns the entry waiting for a click, if any.
func (p *PickMode) Pending() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entryID, p.pending != nil
}

// Cancel drops the pending activation.
func (p *PickMode) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.pending.Cancel()
		p.pending = nil
		p.entryID = ""
	}
}

// showPreview drops a marker at c and schedules its removal. Each marker owns
// its own timer; later picks leave earlier timers running.
func (p *PickMode) showPreview(c geo.Coordinate) {
	layer, ok := p.m.Layer(mapview.LayerPickPreview)
	if !ok {
		layer = mapview.NewLayer(mapview.LayerPickPreview, 1100, previewStyle)
		p.m.AddLayer(layer)
	}

	marker := geojson.NewFeature(orb.Point(c.Pair()))
	id := "preview_" + uuid.New().String()[:12]
	marker.ID = id
	layer.AddFeature(marker)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.previews[id] = p.scheduler.AfterFunc(p.previewDelay, func() {
		layer.RemoveFeature(id)
		p.mu.Lock()
		delete(p.previews, id)
		p.mu.Unlock()
	})
}

// PendingPreviews returns the number of preview markers awaiting removal.
func (p *PickMode) PendingPreviews() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.previews)
}

// Close cancels the pending activation and removes every preview marker now.
func (p *PickMode) Close() {
	p.Cancel()

	p.mu.Lock()
	previews := p.previews
	p.previews = make(map[string]Task)
	p.mu.Unlock()

	layer, ok := p.m.Layer(mapview.LayerPickPreview)
	for id, task := range previews {
		task.Stop()
		if ok {
			layer.RemoveFeature(id)
		}
	}
}
