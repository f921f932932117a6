package isochrone

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/reachmap/reachmap/internal/geo"
)

// mockProvider is a mock isochrone provider for testing.
type mockProvider struct {
	result    *Result
	err       error
	callCount atomic.Int32
	delay     time.Duration
}

func (m *mockProvider) Isochrones(ctx context.Context, req Request) (*Result, error) {
	m.callCount.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockProvider) Name() string {
	return "test-provider"
}

func (m *mockProvider) SupportedProfiles() []Profile {
	return Profiles()
}

func testResult() *Result {
	poly := orb.Polygon{{{30.3, 59.9}, {30.4, 59.9}, {30.4, 60.0}, {30.3, 59.9}}}
	f := geojson.NewFeature(poly)
	f.Properties[PropTimeMinutes] = 15.0
	f.Properties[PropProfile] = string(ProfileWalking)
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return &Result{
		Features:  fc,
		Profile:   ProfileWalking,
		RangeType: RangeTime,
		Provider:  "test-provider",
		FetchedAt: time.Now(),
	}
}

func walkRequest() Request {
	return Request{
		Coordinates: []geo.Coordinate{{Lon: 30.337, Lat: 59.932}},
		Profile:     ProfileWalking,
		RangeType:   RangeTime,
		Magnitude:   15,
	}
}

func TestService_Isochrones_CacheMiss(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	service := NewService(ServiceConfig{Provider: provider})

	result, err := service.Isochrones(context.Background(), walkRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.callCount.Load())
	}
	if len(result.Features.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(result.Features.Features))
	}
}

func TestService_Isochrones_CacheHit(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
			t.Fatalf("unexpected error on call %d: %v", i+1, err)
		}
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (cache hit), got %d", provider.callCount.Load())
	}
}

func TestService_Isochrones_NearbyOriginMisses(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: time.Minute})

	if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
		t.Fatal(err)
	}
	req := walkRequest()
	req.Coordinates[0] = geo.Coordinate{Lon: 30.33704, Lat: 59.93204}
	if _, err := service.Isochrones(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	if provider.callCount.Load() != 2 {
		t.Errorf("expected a provider call per distinct origin, got %d", provider.callCount.Load())
	}
}

func TestService_Isochrones_CacheDisabledByDefault(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	service := NewService(ServiceConfig{Provider: provider})

	for i := 0; i < 2; i++ {
		if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
			t.Fatal(err)
		}
	}

	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls without a cache TTL, got %d", provider.callCount.Load())
	}
}

func TestService_Direct_CallsProviderEveryTime(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: time.Minute})

	// Warm the cache through the shared path.
	if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
		t.Fatal(err)
	}

	direct := service.Direct()
	for i := 0; i < 2; i++ {
		if _, err := direct.Isochrones(context.Background(), walkRequest()); err != nil {
			t.Fatal(err)
		}
	}
	if provider.callCount.Load() != 3 {
		t.Errorf("expected every direct call to reach the provider, got %d calls", provider.callCount.Load())
	}

	req := walkRequest()
	req.Magnitude = 0
	if _, err := direct.Isochrones(context.Background(), req); !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if provider.callCount.Load() != 3 {
		t.Errorf("invalid request reached the provider")
	}
}

// gatedProvider blocks until released and honours context cancellation.
type gatedProvider struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (p *gatedProvider) Isochrones(ctx context.Context, _ Request) (*Result, error) {
	if p.calls.Add(1) == 1 {
		close(p.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.release:
		return testResult(), nil
	}
}

func (p *gatedProvider) Name() string { return "gated" }

func (p *gatedProvider) SupportedProfiles() []Profile { return Profiles() }

func TestService_Isochrones_CancelledCallerDoesNotFailOthers(t *testing.T) {
	provider := &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
	service := NewService(ServiceConfig{Provider: provider})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := service.Isochrones(leaderCtx, walkRequest())
		leaderErr <- err
	}()
	<-provider.started

	type outcome struct {
		result *Result
		err    error
	}
	follower := make(chan outcome, 1)
	go func() {
		r, err := service.Isochrones(context.Background(), walkRequest())
		follower <- outcome{r, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to see context.Canceled, got %v", err)
	}

	close(provider.release)
	got := <-follower
	if got.err != nil {
		t.Fatalf("expected the live caller to succeed, got %v", got.err)
	}
	if got.result == nil || len(got.result.Features.Features) != 1 {
		t.Errorf("unexpected result %+v", got.result)
	}
}

func TestCacheKey_ExactCoordinates(t *testing.T) {
	a := walkRequest()
	b := walkRequest()
	b.Coordinates[0].Lon = 30.33704

	if cacheKey(a) == cacheKey(b) {
		t.Errorf("expected distinct keys, both were %q", cacheKey(a))
	}
	if cacheKey(a) != cacheKey(walkRequest()) {
		t.Error("expected identical requests to share a key")
	}
}

func TestService_Isochrones_DifferentMagnitudeMisses(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	service := NewService(ServiceConfig{Provider: provider})

	if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
		t.Fatal(err)
	}
	req := walkRequest()
	req.Magnitude = 20
	if _, err := service.Isochrones(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	req.Options.AvoidFeatures = []AvoidFeature{AvoidFerries}
	if _, err := service.Isochrones(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	if provider.callCount.Load() != 3 {
		t.Errorf("expected 3 provider calls, got %d", provider.callCount.Load())
	}
}

func TestService_Isochrones_Expiry(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	cache := NewMemoryCache(0)
	now := time.Now()
	cache.now = func() time.Time { return now }
	service := NewService(ServiceConfig{Provider: provider, Cache: cache, CacheTTL: time.Minute})

	if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
		t.Fatal(err)
	}

	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls after expiry, got %d", provider.callCount.Load())
	}
}

func TestService_Isochrones_ValidationSkipsProvider(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	service := NewService(ServiceConfig{Provider: provider})

	req := walkRequest()
	req.Coordinates[0].Lon = 0

	_, err := service.Isochrones(context.Background(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !verr.Has(LonField(0)) {
		t.Errorf("expected %s to be flagged, got %+v", LonField(0), verr.Fields)
	}
	if provider.callCount.Load() != 0 {
		t.Errorf("expected no provider call, got %d", provider.callCount.Load())
	}
}

func TestService_Isochrones_ProviderErrorNotMaskedByStaleData(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	cache := NewMemoryCache(0)
	now := time.Now()
	cache.now = func() time.Time { return now }
	service := NewService(ServiceConfig{Provider: provider, Cache: cache, CacheTTL: time.Minute})

	if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Minute)
	provider.err = &ProviderError{Provider: "test-provider", Status: 503, Message: "down", Err: ErrProviderUnavailable}

	_, err := service.Isochrones(context.Background(), walkRequest())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestService_Isochrones_ConcurrentRequestsShareCall(t *testing.T) {
	provider := &mockProvider{result: testResult(), delay: 50 * time.Millisecond}
	service := NewService(ServiceConfig{Provider: provider})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := provider.callCount.Load(); n > 2 {
		t.Errorf("expected coalesced provider calls, got %d", n)
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	requests int
	failures int
	hits     int
	misses   int
}

func (m *recordingMetrics) RecordRequest(_, _ string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if err != nil {
		m.failures++
	}
}

func (m *recordingMetrics) RecordCacheHit(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *recordingMetrics) RecordCacheMiss(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func TestService_RecordsMetrics(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	metrics := &recordingMetrics{}
	service := NewService(ServiceConfig{Provider: provider, Metrics: metrics, CacheTTL: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := service.Isochrones(context.Background(), walkRequest()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	provider.err = &ProviderError{Status: 503, Err: ErrProviderUnavailable}
	req := walkRequest()
	req.Magnitude = 20
	if _, err := service.Isochrones(context.Background(), req); err == nil {
		t.Fatal("expected provider error")
	}

	if metrics.requests != 2 || metrics.failures != 1 {
		t.Errorf("expected 2 requests with 1 failure, got %d/%d", metrics.requests, metrics.failures)
	}
	if metrics.hits != 1 || metrics.misses != 2 {
		t.Errorf("expected 1 hit and 2 misses, got %d/%d", metrics.hits, metrics.misses)
	}
}

func TestService_InvalidateCache(t *testing.T) {
	provider := &mockProvider{result: testResult()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: time.Minute})

	_, _ = service.Isochrones(context.Background(), walkRequest())
	if err := service.InvalidateCache(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, _ = service.Isochrones(context.Background(), walkRequest())

	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls after invalidation, got %d", provider.callCount.Load())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr []string
	}{
		{name: "valid", mutate: func(*Request) {}},
		{name: "zero longitude", mutate: func(r *Request) { r.Coordinates[0].Lon = 0 }, wantErr: []string{"coordinates[0].lon"}},
		{name: "zero latitude", mutate: func(r *Request) { r.Coordinates[0].Lat = 0 }, wantErr: []string{"coordinates[0].lat"}},
		{name: "NaN", mutate: func(r *Request) { r.Coordinates[0].Lat = math.NaN() }, wantErr: []string{"coordinates[0].lat"}},
		{name: "out of range", mutate: func(r *Request) { r.Coordinates[0].Lon = 181 }, wantErr: []string{"coordinates[0].lon"}},
		{name: "no points", mutate: func(r *Request) { r.Coordinates = nil }, wantErr: []string{FieldCoordinates}},
		{name: "second point", mutate: func(r *Request) {
			r.Coordinates = append(r.Coordinates, geo.Coordinate{Lon: 30.1, Lat: 0})
		}, wantErr: []string{"coordinates[1].lat"}},
		{name: "unknown profile", mutate: func(r *Request) { r.Profile = "hovercraft" }, wantErr: []string{FieldProfile}},
		{name: "unknown range type", mutate: func(r *Request) { r.RangeType = "energy" }, wantErr: []string{FieldRangeType}},
		{name: "zero magnitude", mutate: func(r *Request) { r.Magnitude = 0 }, wantErr: []string{FieldMagnitude}},
		{name: "negative magnitude", mutate: func(r *Request) { r.Magnitude = -5 }, wantErr: []string{FieldMagnitude}},
		{name: "time above cap", mutate: func(r *Request) { r.Magnitude = 121 }, wantErr: []string{FieldMagnitude}},
		{name: "time at cap", mutate: func(r *Request) { r.Magnitude = 120 }},
		{name: "distance above time cap", mutate: func(r *Request) {
			r.RangeType = RangeDistance
			r.Magnitude = 5000
		}},
		{name: "distance above cap", mutate: func(r *Request) {
			r.RangeType = RangeDistance
			r.Magnitude = 120001
		}, wantErr: []string{FieldMagnitude}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := walkRequest()
			tt.mutate(&req)
			err := Validate(req, DefaultLimits)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			for _, f := range tt.wantErr {
				if !verr.Has(f) {
					t.Errorf("expected field %q flagged, got %+v", f, verr.Fields)
				}
			}
		})
	}
}

func TestProviderError_MessageFallback(t *testing.T) {
	err := &ProviderError{Err: ErrBadRequest}
	if err.Error() != DefaultProviderMessage {
		t.Errorf("expected fallback message, got %q", err.Error())
	}
	if err.IsRetryable() {
		t.Error("bad request must not be retryable")
	}

	err = &ProviderError{Message: "bad request", Err: ErrRateLimitExceeded}
	if err.Error() != "bad request" {
		t.Errorf("expected provider message, got %q", err.Error())
	}
	if !err.IsRetryable() {
		t.Error("rate limit should be retryable")
	}
}

func TestCacheRecordRoundTrip(t *testing.T) {
	in := testResult()
	data, err := encodeResult(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := decodeResult(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.Profile != in.Profile || out.RangeType != in.RangeType || out.Provider != in.Provider {
		t.Errorf("metadata mismatch: %+v", out)
	}
	if len(out.Features.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(out.Features.Features))
	}
	if got := out.Features.Features[0].Properties[PropTimeMinutes]; got != 15.0 {
		t.Errorf("expected timeMinutes 15, got %v", got)
	}
	if _, ok := out.Features.Features[0].Geometry.(orb.Polygon); !ok {
		t.Errorf("expected polygon, got %T", out.Features.Features[0].Geometry)
	}
}
