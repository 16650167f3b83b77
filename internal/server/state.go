// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"github.com/tomtom215/cartotile/internal/cache"
	"github.com/tomtom215/cartotile/internal/fonts"
	"github.com/tomtom215/cartotile/internal/source"
	"github.com/tomtom215/cartotile/internal/sprites"
)

// ServerState bundles the registries of one generation. Sprites and Fonts
// are nil when the feature is not configured; Cache is nil when caching is
// disabled.
type ServerState struct {
	Generation uint64
	Tiles      *source.TileSources
	Sprites    *sprites.Sources
	Fonts      *fonts.Sources
	Cache      *cache.TileCache
}

// Close releases the handles held by the tile sources.
func (s *ServerState) Close() error {
	if s == nil {
		return nil
	}
	return s.Tiles.Close()
}
