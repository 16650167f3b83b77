// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"context"
	"io"
	"maps"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cartotile/internal/backends"
	"github.com/tomtom215/cartotile/internal/cache"
	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/fonts"
	"github.com/tomtom215/cartotile/internal/source"
	"github.com/tomtom215/cartotile/internal/sprites"
)

// OpenFunc turns one source configuration into a live source.
type OpenFunc func(ctx context.Context, id string, sc config.SourceConfig) (source.Source, error)

// Resolver builds server states from finalized configuration.
type Resolver struct {
	Open OpenFunc
}

// NewResolver returns a resolver using the built-in backends.
func NewResolver() *Resolver {
	return &Resolver{Open: backends.Open}
}

// Resolve opens every source concurrently and loads the sprite and font
// registries. On failure every source opened so far is closed again.
func (r *Resolver) Resolve(ctx context.Context, cfg *config.Config, generation uint64) (*ServerState, error) {
	ids := slices.Sorted(maps.Keys(cfg.Sources))

	var (
		mu     sync.Mutex
		opened = make([]source.Source, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, id := range ids {
		sc := cfg.Sources[id]
		g.Go(func() error {
			src, err := r.Open(gctx, id, sc)
			if err != nil {
				return err
			}
			mu.Lock()
			opened = append(opened, src)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	var tiles *source.TileSources
	if err == nil {
		tiles, err = source.NewTileSources(opened...)
	}
	if err != nil {
		closeAll(opened)
		return nil, err
	}

	state := &ServerState{
		Generation: generation,
		Tiles:      tiles,
		Cache: cache.New(cache.Config{
			Entries:  cfg.Cache.Entries,
			MaxBytes: int64(cfg.Cache.MaxSizeMB) << 20,
			TTL:      cfg.Cache.TTL,
		}),
	}
	if cfg.Sprites.Enabled() {
		if state.Sprites, err = sprites.New(cfg.Sprites.Paths, cfg.Sprites.Sources); err != nil {
			_ = tiles.Close()
			return nil, err
		}
	}
	if cfg.Fonts.Enabled() {
		if state.Fonts, err = fonts.New(cfg.Fonts.Paths); err != nil {
			_ = tiles.Close()
			return nil, err
		}
	}
	return state, nil
}

func closeAll(srcs []source.Source) {
	for _, s := range srcs {
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
