package isochrone

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig holds configuration for the isochrone service.
type ServiceConfig struct {
	// Provider is the isochrone data provider.
	Provider Provider

	// Cache stores provider results (default: in-memory).
	Cache Cache

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache isochrones. Zero disables caching.
	CacheTTL time.Duration

	// FetchTimeout bounds a provider call shared by concurrent callers
	// (default: 45 seconds).
	FetchTimeout time.Duration

	// Limits bounds the accepted magnitude (default: DefaultLimits).
	Limits *Limits

	// Metrics records provider calls and cache lookups (optional).
	Metrics MetricsRecorder
}

// MetricsRecorder receives provider and cache measurements.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

type nopMetrics struct{}

func (nopMetrics) RecordRequest(string, string, time.Duration, error) {}
func (nopMetrics) RecordCacheHit(string, string)                      {}
func (nopMetrics) RecordCacheMiss(string, string)                     {}

// Service provides isochrones with validation and caching. Provider failures
// are never masked by stale cache entries.
type Service struct {
	provider     Provider
	cache        Cache
	logger       zerolog.Logger
	cacheTTL     time.Duration
	fetchTimeout time.Duration
	limits       Limits
	metrics      MetricsRecorder
	group        singleflight.Group
}

// NewService creates a new isochrone service.
func NewService(cfg ServiceConfig) *Service {
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 45 * time.Second
	}

	limits := DefaultLimits
	if cfg.Limits != nil {
		limits = *cfg.Limits
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(0)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Service{
		provider:     cfg.Provider,
		cache:        cache,
		logger:       cfg.Logger,
		cacheTTL:     cfg.CacheTTL,
		fetchTimeout: fetchTimeout,
		limits:       limits,
		metrics:      metrics,
	}
}

// Limits returns the magnitude bounds enforced by Validate.
func (s *Service) Limits() Limits {
	return s.limits
}

// Validate checks a request against the service limits.
func (s *Service) Validate(req Request) error {
	return Validate(req, s.limits)
}

// Isochrones validates the request and returns the reachable area, using
// cached data when caching is enabled. Identical concurrent requests share one
// provider call, which outlives any single caller's cancellation.
func (s *Service) Isochrones(ctx context.Context, req Request) (*Result, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	key := cacheKey(req)
	if s.cacheTTL > 0 {
		if cached, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("isochrone cache read failed")
		} else if ok {
			s.logger.Debug().Str("cache_key", key).Msg("cache hit for isochrone")
			s.metrics.RecordCacheHit(s.provider.Name(), string(req.Profile))
			return cached, nil
		}
		s.metrics.RecordCacheMiss(s.provider.Name(), string(req.Profile))
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, req, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug().Str("cache_key", key).Msg("joined in-flight isochrone request")
		}
		return res.Val.(*Result), nil
	}
}

// Direct returns a view of the service that validates every request and
// always calls the provider, bypassing the cache and request sharing.
func (s *Service) Direct() *Direct {
	return &Direct{service: s}
}

// Direct issues exactly one provider request per valid call.
type Direct struct {
	service *Service
}

// Isochrones validates the request and asks the provider.
func (d *Direct) Isochrones(ctx context.Context, req Request) (*Result, error) {
	if err := d.service.Validate(req); err != nil {
		return nil, err
	}
	return d.service.call(ctx, req)
}

func (s *Service) fetch(ctx context.Context, req Request, key string) (*Result, error) {
	result, err := s.call(ctx, req)
	if err != nil || s.cacheTTL <= 0 {
		return result, err
	}

	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("isochrone cache write failed")
	} else {
		s.logger.Debug().
			Str("cache_key", key).
			Int("feature_count", len(result.Features.Features)).
			Msg("cached isochrone response")
	}
	return result, nil
}

func (s *Service) call(ctx context.Context, req Request) (*Result, error) {
	s.logger.Debug().
		Int("locations", len(req.Coordinates)).
		Str("profile", string(req.Profile)).
		Str("range_type", string(req.RangeType)).
		Float64("magnitude", req.Magnitude).
		Str("provider", s.provider.Name()).
		Msg("fetching isochrone from provider")

	start := time.Now()
	result, err := s.provider.Isochrones(ctx, req)
	s.metrics.RecordRequest(s.provider.Name(), string(req.Profile), time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("profile", string(req.Profile)).
			Str("range_type", string(req.RangeType)).
			Float64("magnitude", req.Magnitude).
			Msg("failed to fetch isochrone")
		return nil, err
	}
	return result, nil
}

// cacheKey generates a cache key for an isochrone request.
// Format: {profile}:{rangeType}:{magnitude}:{lon,lat;...}[:{options}].
// Coordinates are written exactly so distinct origins never share a result.
func cacheKey(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s:%g:", req.Profile, req.RangeType, req.Magnitude)
	for i, c := range req.Coordinates {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(c.Lon, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(c.Lat, 'g', -1, 64))
	}

	opts := req.Options
	if opts.Interval > 0 {
		fmt.Fprintf(&b, ":i=%g", opts.Interval)
	}
	if len(opts.Attributes) > 0 {
		attrs := append([]string(nil), opts.Attributes...)
		sort.Strings(attrs)
		fmt.Fprintf(&b, ":a=%s", strings.Join(attrs, ","))
	}
	if len(opts.AvoidFeatures) > 0 {
		avoid := make([]string, 0, len(opts.AvoidFeatures))
		for _, f := range opts.AvoidFeatures {
			avoid = append(avoid, string(f))
		}
		sort.Strings(avoid)
		fmt.Fprintf(&b, ":x=%s", strings.Join(avoid, ","))
	}
	if opts.AvoidPolygons != nil {
		fmt.Fprintf(&b, ":p=%s", wkt.MarshalString(opts.AvoidPolygons))
	}
	return b.String()
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// SupportedProfiles returns the profiles of the underlying provider.
func (s *Service) SupportedProfiles() []Profile {
	return s.provider.SupportedProfiles()
}
