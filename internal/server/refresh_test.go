// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartotile/internal/config"
)

func TestRefreshAddsSource(t *testing.T) {
	h := newHarness(t, testConfig("roads"))
	assertStatus(t, h.get("/water/0/0/0"), http.StatusNotFound)

	h.setConfig(testConfig("roads", "water"))
	assertStatus(t, h.refresh(), http.StatusOK)

	rec := h.get("/water/0/0/0")
	assertStatus(t, rec, http.StatusOK)
	if got := readBody(t, rec); got != "tile:water" {
		t.Errorf("body = %q", got)
	}

	var cat Catalog
	if err := json.Unmarshal(h.get("/catalog").Body.Bytes(), &cat); err != nil {
		t.Fatal(err)
	}
	if _, ok := cat.Tiles["water"]; !ok {
		t.Errorf("catalog after refresh = %v, want water", cat.Tiles)
	}
	if got := h.app.State.Read().Generation; got != 2 {
		t.Errorf("generation = %d, want 2", got)
	}
}

func TestRefreshRemovesSource(t *testing.T) {
	h := newHarness(t, testConfig("roads", "water"))

	h.setConfig(testConfig("roads"))
	assertStatus(t, h.refresh(), http.StatusOK)
	assertStatus(t, h.get("/water/0/0/0"), http.StatusNotFound)
	assertStatus(t, h.get("/roads/0/0/0"), http.StatusOK)
}

func TestFailedRefreshKeepsState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"read error", func(h *harness) {
			h.failRead(&config.Error{Op: config.OpLoad, Err: errors.New("config.yaml: yaml: line 3: did not find expected key")})
		}},
		{"finalize error", func(h *harness) {
			h.failRead(&config.Error{Op: config.OpFinalize, Err: errors.New(`source "catalog": reserved keyword`)})
		}},
		{"open error", func(h *harness) {
			h.setConfig(withSource(testConfig("roads", "water"), "broken", config.SourceConfig{Path: pathBroken}))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig("roads"))
			before := h.get("/catalog").Body.Bytes()

			tt.setup(h)
			rec := h.refresh()
			assertStatus(t, rec, http.StatusInternalServerError)

			after := h.get("/catalog").Body.Bytes()
			if !bytes.Equal(before, after) {
				t.Errorf("catalog changed after failed refresh:\nbefore %s\nafter  %s", before, after)
			}
			assertStatus(t, h.get("/roads/0/0/0"), http.StatusOK)
			assertStatus(t, h.get("/water/0/0/0"), http.StatusNotFound)
			if got := h.app.State.Read().Generation; got != 1 {
				t.Errorf("generation = %d, want 1", got)
			}
		})
	}
}

func TestFailedResolveClosesOpenedSources(t *testing.T) {
	h := newHarness(t, testConfig("roads"))

	h.setConfig(withSource(testConfig("a", "b", "c"), "broken", config.SourceConfig{Path: pathBroken}))
	if err := h.refresher.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() succeeded with a broken source")
	} else {
		var cerr *config.Error
		if !errors.As(err, &cerr) || cerr.Op != config.OpResolve {
			t.Errorf("Refresh() error = %v, want resolve stage", err)
		}
	}

	// a, b and c may or may not have been opened before the failure; all
	// that were must be closed again.
	opened := h.closed.Load()
	if opened > 3 {
		t.Errorf("closed %d sources, at most 3 were opened", opened)
	}
	if h.pendingDrains() != 0 {
		t.Error("failed refresh scheduled a drain")
	}
}

func TestDrainClosesSupersededGeneration(t *testing.T) {
	cfg := testConfig("roads", "water")
	cfg.Server.DrainTimeout = time.Minute
	h := newHarness(t, cfg)

	next := testConfig("roads")
	next.Server.DrainTimeout = time.Minute
	h.setConfig(next)
	assertStatus(t, h.refresh(), http.StatusOK)

	if got := h.closed.Load(); got != 0 {
		t.Fatalf("closed %d sources before drain", got)
	}
	if got := h.pendingDrains(); got != 1 {
		t.Fatalf("pending drains = %d, want 1", got)
	}
	h.runDrains()
	if got := h.closed.Load(); got != 2 {
		t.Errorf("closed %d sources after drain, want 2", got)
	}
}

func TestZeroDrainClosesImmediately(t *testing.T) {
	h := newHarness(t, testConfig("roads"))

	h.setConfig(testConfig("roads"))
	assertStatus(t, h.refresh(), http.StatusOK)
	if got := h.closed.Load(); got != 1 {
		t.Errorf("closed %d sources, want 1", got)
	}
	if h.pendingDrains() != 0 {
		t.Error("zero drain timeout scheduled a drain")
	}
}

func TestRefreshRateLimit(t *testing.T) {
	h := newHarnessWithRouter(t, testConfig("roads"), RouterConfig{RefreshRateLimit: 1})

	assertStatus(t, h.refresh(), http.StatusOK)
	assertStatus(t, h.refresh(), http.StatusTooManyRequests)
}

func TestRefreshBeforeBootstrap(t *testing.T) {
	r := NewRefresher(config.Args{}, &Resolver{})
	if err := r.Refresh(context.Background()); err == nil {
		t.Error("Refresh() before Bootstrap succeeded")
	}
}

func TestAttachContinuesGenerations(t *testing.T) {
	h := newHarness(t, testConfig("roads"))

	r := NewRefresher(config.Args{}, &Resolver{Open: h.open})
	r.read = h.read
	r.Attach(h.app)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := h.app.State.Read().Generation; got != 2 {
		t.Errorf("generation = %d, want 2", got)
	}
}

// Readers running during refreshes must always see one complete catalog.
func TestConcurrentCatalogDuringRefresh(t *testing.T) {
	cfgA := testConfig("roads")
	cfgB := testConfig("roads", "water", "rail")

	h := newHarness(t, cfgB)
	bodyB := h.get("/catalog").Body.String()
	h.setConfig(cfgA)
	assertStatus(t, h.refresh(), http.StatusOK)
	bodyA := h.get("/catalog").Body.String()
	if bodyA == bodyB {
		t.Fatal("test catalogs must differ")
	}

	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
		errs = make(chan string, 8)
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				body := h.get("/catalog").Body.String()
				if body != bodyA && body != bodyB {
					select {
					case errs <- body:
					default:
					}
					return
				}
			}
		}()
	}

	for i := range 20 {
		if i%2 == 0 {
			h.setConfig(cfgB)
		} else {
			h.setConfig(cfgA)
		}
		if err := h.refresher.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)
	for body := range errs {
		t.Errorf("reader saw an unexpected catalog: %s", body)
	}
}

func TestBuildCatalogIsDeterministic(t *testing.T) {
	h := newHarness(t, testConfig("c", "a", "b"))
	state := h.app.State.Read()

	first, err := NewCatalogDoc(state)
	if err != nil {
		t.Fatal(err)
	}
	for range 10 {
		doc, err := NewCatalogDoc(state)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(doc.Body, first.Body) {
			t.Fatalf("catalog encoding differs: %s vs %s", doc.Body, first.Body)
		}
	}
}

func TestSlowOlderRefreshDoesNotReplaceNewer(t *testing.T) {
	h := newHarness(t, testConfig("roads"))
	h.opened = make(chan struct{}, 1)
	h.gate = make(chan struct{})

	h.setConfig(withSource(testConfig("roads"), "slow", config.SourceConfig{Path: pathGated}))
	slow := make(chan int, 1)
	go func() { slow <- h.refresh().Code }()
	<-h.opened

	h.setConfig(testConfig("roads", "terrain"))
	assertStatus(t, h.refresh(), http.StatusOK)
	newer := h.get("/catalog").Body.String()
	gen := h.app.State.Read().Generation
	closedBefore := h.closed.Load()

	close(h.gate)
	if code := <-slow; code != http.StatusOK {
		t.Fatalf("superseded refresh status = %d", code)
	}

	if got := h.app.State.Read().Generation; got != gen {
		t.Errorf("generation = %d after the older build finished, want %d", got, gen)
	}
	if got := h.get("/catalog").Body.String(); got != newer {
		t.Errorf("catalog replaced by the older build:\n%s", got)
	}
	assertStatus(t, h.get("/slow/0/0/0"), http.StatusNotFound)
	// Both sources of the discarded build are closed right away.
	if got := h.closed.Load() - closedBefore; got != 2 {
		t.Errorf("closed %d sources, want the 2 of the discarded build", got)
	}
}
