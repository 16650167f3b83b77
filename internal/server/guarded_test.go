// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"testing"
	"time"

	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/source"
)

func TestGuardedRead(t *testing.T) {
	g := NewGuarded(42)
	if got := g.Read(); got != 42 {
		t.Errorf("Read() = %d, want 42", got)
	}
}

func TestSwapReplacesEverySlot(t *testing.T) {
	oldTiles, _ := source.NewTileSources()
	old := &ServerState{Generation: 1, Tiles: oldTiles}
	app := NewAppState(&Generation{
		SrvConfig: config.ServerConfig{ListenAddresses: "127.0.0.1:3000"},
		State:     old,
		Catalog:   &CatalogDoc{Body: []byte(`{"tiles":{}}`)},
	})

	newTiles, _ := source.NewTileSources()
	next := &ServerState{Generation: 2, Tiles: newTiles}
	doc := &CatalogDoc{Body: []byte(`{"tiles":{"a":{}}}`)}
	got, ok := app.swap(&Generation{
		SrvConfig: config.ServerConfig{ListenAddresses: "127.0.0.1:3000", KeepAlive: time.Second},
		State:     next,
		Catalog:   doc,
	})

	if !ok || got != old {
		t.Errorf("swap returned %p, want previous state %p", got, old)
	}
	if app.State.Read() != next || app.Catalog.Read() != doc || app.Sources.Read() != newTiles {
		t.Error("swap left a slot on the previous generation")
	}
	if app.SrvConfig.Read().KeepAlive != time.Second {
		t.Error("server config slot not replaced")
	}
	if app.Cache.Read() != nil || app.Sprites.Read() != nil || app.Fonts.Read() != nil {
		t.Error("disabled features must be nil after swap")
	}
}

// A reader holding one slot's read lock delays the swap until it is done.
func TestSwapWaitsForReaders(t *testing.T) {
	tiles, _ := source.NewTileSources()
	app := NewAppState(&Generation{State: &ServerState{Generation: 1, Tiles: tiles}, Catalog: &CatalogDoc{}})

	app.Fonts.mu.RLock()
	done := make(chan struct{})
	go func() {
		_, _ = app.swap(&Generation{State: &ServerState{Generation: 2, Tiles: tiles}, Catalog: &CatalogDoc{}})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("swap completed while a reader held a slot")
	case <-time.After(50 * time.Millisecond):
	}
	app.Fonts.mu.RUnlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("swap did not complete after reader released")
	}
	if got := app.State.Read().Generation; got != 2 {
		t.Errorf("generation = %d, want 2", got)
	}
}

func TestSwapRejectsOlderGeneration(t *testing.T) {
	tiles, _ := source.NewTileSources()
	live := &ServerState{Generation: 5, Tiles: tiles}
	doc := &CatalogDoc{Body: []byte(`{"tiles":{}}`)}
	app := NewAppState(&Generation{State: live, Catalog: doc})

	stale := &ServerState{Generation: 4, Tiles: tiles}
	old, ok := app.swap(&Generation{
		SrvConfig: config.ServerConfig{KeepAlive: time.Minute},
		State:     stale,
		Catalog:   &CatalogDoc{Body: []byte(`{"tiles":{"stale":{}}}`)},
	})
	if ok || old != nil {
		t.Fatalf("swap(older) = %v, %v; want nil, false", old, ok)
	}
	if app.State.Read() != live || app.Catalog.Read() != doc || app.SrvConfig.Read().KeepAlive != 0 {
		t.Error("older generation replaced a slot")
	}
}
