package isochrone

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Cache stores isochrone results by key.
type Cache interface {
	// Get returns the cached result; ok is false on a miss.
	Get(ctx context.Context, key string) (result *Result, ok bool, err error)
	Set(ctx context.Context, key string, result *Result, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// MemoryCache is an in-process Cache with lazy expiry.
type MemoryCache struct {
	cleanupInterval time.Duration

	mu          sync.RWMutex
	entries     map[string]cachedResult
	lastCleanup time.Time
	now         func() time.Time
}

type cachedResult struct {
	result    *Result
	expiresAt time.Time
}

// NewMemoryCache creates an empty cache. Expired entries are swept at most
// once per cleanupInterval (default: 5 minutes).
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &MemoryCache{
		cleanupInterval: cleanupInterval,
		entries:         make(map[string]cachedResult),
		now:             time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.result, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, result *Result, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[key] = cachedResult{result: result, expiresAt: now.Add(ttl)}
	c.cleanupIfNeeded(now)
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedResult)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanupIfNeeded must be called with mu held.
func (c *MemoryCache) cleanupIfNeeded(now time.Time) {
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// cacheRecord is the serialized form of a Result.
type cacheRecord struct {
	Features  *geojson.FeatureCollection `json:"features"`
	Profile   Profile                    `json:"profile"`
	RangeType RangeType                  `json:"rangeType"`
	Provider  string                     `json:"provider"`
	FetchedAt time.Time                  `json:"fetchedAt"`
}

func encodeResult(r *Result) ([]byte, error) {
	return json.Marshal(cacheRecord{
		Features:  r.Features,
		Profile:   r.Profile,
		RangeType: r.RangeType,
		Provider:  r.Provider,
		FetchedAt: r.FetchedAt,
	})
}

func decodeResult(data []byte) (*Result, error) {
	var rec cacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Features == nil {
		rec.Features = geojson.NewFeatureCollection()
	}
	return &Result{
		Features:  rec.Features,
		Profile:   rec.Profile,
		RangeType: rec.RangeType,
		Provider:  rec.Provider,
		FetchedAt: rec.FetchedAt,
	}, nil
}
