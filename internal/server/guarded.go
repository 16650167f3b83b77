// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"sync"

	"github.com/tomtom215/cartotile/internal/cache"
	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/fonts"
	"github.com/tomtom215/cartotile/internal/source"
	"github.com/tomtom215/cartotile/internal/sprites"
)

// Guarded is a value behind its own reader-writer lock.
type Guarded[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewGuarded returns a slot holding v.
func NewGuarded[T any](v T) *Guarded[T] {
	return &Guarded[T]{v: v}
}

// Read returns the current value under a read lock.
func (g *Guarded[T]) Read() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

// AppState is the set of slots shared by every request handler.
type AppState struct {
	SrvConfig *Guarded[config.ServerConfig]
	State     *Guarded[*ServerState]
	Catalog   *Guarded[*CatalogDoc]
	Sources   *Guarded[*source.TileSources]
	Cache     *Guarded[*cache.TileCache]
	Sprites   *Guarded[*sprites.Sources]
	Fonts     *Guarded[*fonts.Sources]
}

// Generation is one fully built set of slot values.
type Generation struct {
	SrvConfig config.ServerConfig
	State     *ServerState
	Catalog   *CatalogDoc
}

// NewAppState fills every slot from gen.
func NewAppState(gen *Generation) *AppState {
	return &AppState{
		SrvConfig: NewGuarded(gen.SrvConfig),
		State:     NewGuarded(gen.State),
		Catalog:   NewGuarded(gen.Catalog),
		Sources:   NewGuarded(gen.State.Tiles),
		Cache:     NewGuarded(gen.State.Cache),
		Sprites:   NewGuarded(gen.State.Sprites),
		Fonts:     NewGuarded(gen.State.Fonts),
	}
}

// swap replaces every slot with gen and returns the superseded server
// state. Locks are taken in the fixed order below and released together,
// so no reader sees a slot from a half-applied generation. A gen older
// than the live one is not applied and swap reports false.
func (a *AppState) swap(gen *Generation) (*ServerState, bool) {
	a.SrvConfig.mu.Lock()
	defer a.SrvConfig.mu.Unlock()
	a.State.mu.Lock()
	defer a.State.mu.Unlock()
	a.Catalog.mu.Lock()
	defer a.Catalog.mu.Unlock()
	a.Sources.mu.Lock()
	defer a.Sources.mu.Unlock()
	a.Cache.mu.Lock()
	defer a.Cache.mu.Unlock()
	a.Sprites.mu.Lock()
	defer a.Sprites.mu.Unlock()
	a.Fonts.mu.Lock()
	defer a.Fonts.mu.Unlock()

	old := a.State.v
	if old != nil && gen.State.Generation < old.Generation {
		return nil, false
	}
	a.SrvConfig.v = gen.SrvConfig
	a.State.v = gen.State
	a.Catalog.v = gen.Catalog
	a.Sources.v = gen.State.Tiles
	a.Cache.v = gen.State.Cache
	a.Sprites.v = gen.State.Sprites
	a.Fonts.v = gen.State.Fonts
	return old, true
}
