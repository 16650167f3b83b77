// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package services

import (
	"context"
	"time"

	"github.com/tomtom215/cartotile/internal/logging"
)

// ExpiredCleaner drops expired entries and reports how many it removed.
type ExpiredCleaner interface {
	CleanupExpired() int
}

// CacheJanitorService periodically evicts expired tiles from whichever
// cache the current generation uses. Lookups already ignore expired
// entries; the janitor only returns their memory.
type CacheJanitorService struct {
	current  func() ExpiredCleaner
	interval time.Duration
}

// NewCacheJanitorService calls current on every tick to find the cache.
func NewCacheJanitorService(current func() ExpiredCleaner, interval time.Duration) *CacheJanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CacheJanitorService{current: current, interval: interval}
}

// Serve implements suture.Service.
func (s *CacheJanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.current().CleanupExpired(); n > 0 {
				logging.Debug().Int("removed", n).Msg("Expired tiles evicted")
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *CacheJanitorService) String() string {
	return "cache-janitor"
}
