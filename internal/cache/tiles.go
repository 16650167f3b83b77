// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package cache

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/cartotile/internal/metrics"
	"github.com/tomtom215/cartotile/internal/source"
)

// Config sizes a TileCache.
type Config struct {
	// Entries is the maximum number of cached tiles. Zero disables caching.
	Entries int

	// MaxBytes bounds the total cached payload. Zero means unbounded.
	MaxBytes int64

	// TTL is how long a tile stays fresh.
	TTL time.Duration
}

// TileCache is the shared tile result cache of one server generation.
//
// Concurrent misses for the same key are collapsed so a backend sees one
// fetch per key at a time. A refresh replaces the whole TileCache; entries
// are never carried from one generation to the next.
type TileCache struct {
	lru   *LRU
	group singleflight.Group
}

// New returns a TileCache, or nil when cfg.Entries is zero. A nil
// *TileCache is valid and caches nothing.
func New(cfg Config) *TileCache {
	if cfg.Entries <= 0 {
		return nil
	}
	return &TileCache{lru: NewLRU(cfg.Entries, cfg.MaxBytes, cfg.TTL)}
}

// Key builds the cache key for a tile request. Query parameters are
// encoded in sorted order so equivalent queries share a key.
func Key(sourceID string, coord source.TileCoord, query url.Values) string {
	var b strings.Builder
	b.WriteString(sourceID)
	b.WriteByte('/')
	b.WriteString(coord.String())
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

// FetchFunc loads a tile on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// GetOrFetch returns the cached tile for key, calling fetch on a miss.
// Failed fetches are not cached.
//
// The shared fetch runs detached from any single caller's cancellation:
// a caller whose ctx ends stops waiting and gets ctx.Err(), while the
// fetch continues for the callers still waiting on key.
func (c *TileCache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	if c == nil {
		return fetch(ctx)
	}

	if data, ok := c.lru.Get(key); ok {
		metrics.TileCacheHits.Inc()
		return data, nil
	}
	metrics.TileCacheMisses.Inc()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A call that finished just before this one joined has already
		// stored the tile.
		if data, ok := c.lru.Get(key); ok {
			return data, nil
		}
		data, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, data)
		metrics.TileCacheSize.Set(float64(c.lru.Len()))
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		data, _ := res.Val.([]byte)
		return data, nil
	}
}

// Stats returns the counters of the underlying LRU.
func (c *TileCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return c.lru.Stats()
}

// CleanupExpired drops expired tiles and returns how many were removed.
func (c *TileCache) CleanupExpired() int {
	if c == nil {
		return 0
	}
	n := c.lru.CleanupExpired()
	metrics.TileCacheSize.Set(float64(c.lru.Len()))
	return n
}
