package isochrone

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// DefaultValkeyPrefix namespaces isochrone keys in a shared Valkey.
const DefaultValkeyPrefix = "reachmap:isochrone:"

// ValkeyCache stores results in Valkey (Redis-compatible) so several API
// instances share them.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache connects to the Valkey server at addr.
func NewValkeyCache(addr, prefix string) (*ValkeyCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return NewValkeyCacheWithClient(client, prefix), nil
}

// NewValkeyCacheWithClient wraps an existing client.
func NewValkeyCacheWithClient(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = DefaultValkeyPrefix
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

// Get implements Cache.
func (c *ValkeyCache) Get(ctx context.Context, key string) (*Result, bool, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}
	result, err := decodeResult(b)
	if err != nil {
		return nil, false, fmt.Errorf("decoding cached isochrone: %w", err)
	}
	return result, true, nil
}

// Set implements Cache.
func (c *ValkeyCache) Set(ctx context.Context, key string, result *Result, ttl time.Duration) error {
	b, err := encodeResult(result)
	if err != nil {
		return fmt.Errorf("encoding isochrone: %w", err)
	}
	cmd := c.client.B().Set().Key(c.prefix + key).Value(valkey.BinaryString(b)).Ex(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Clear implements Cache by deleting every key under the prefix.
func (c *ValkeyCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		entry, err := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(c.prefix+"*").Count(100).Build()).AsScanEntry()
		if err != nil {
			return fmt.Errorf("valkey scan: %w", err)
		}
		if len(entry.Elements) > 0 {
			if err := c.client.Do(ctx, c.client.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return fmt.Errorf("valkey del: %w", err)
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks connectivity.
func (c *ValkeyCache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *ValkeyCache) Close() {
	c.client.Close()
}
