// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/middleware"
	"github.com/tomtom215/cartotile/internal/source"
	"github.com/tomtom215/cartotile/internal/source/sourcetest"
)

// Source paths understood by testOpen.
const (
	pathBroken    = "broken"
	pathEmpty     = "empty"
	pathTransient = "transient"
	pathFatal     = "fatal"
	pathGated     = "gated"
)

// closingSource counts Close calls of a generation's sources.
type closingSource struct {
	*sourcetest.Static
	closed *atomic.Int64
}

func (c *closingSource) Close() error {
	c.closed.Add(1)
	return nil
}

type harness struct {
	t *testing.T

	mu      sync.Mutex
	cfg     *config.Config
	readErr error
	drains  []func()

	// gated sources signal opened and block in open until gate closes.
	opened chan struct{}
	gate   chan struct{}

	closed    atomic.Int64
	refresher *Refresher
	app       *AppState
	router    http.Handler
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	return newHarnessWithRouter(t, cfg, RouterConfig{})
}

func newHarnessWithRouter(t *testing.T, cfg *config.Config, rc RouterConfig) *harness {
	t.Helper()
	h := &harness{t: t, cfg: cfg}

	h.refresher = NewRefresher(config.Args{}, &Resolver{Open: h.open})
	h.refresher.read = h.read
	h.refresher.afterFunc = func(_ time.Duration, f func()) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.drains = append(h.drains, f)
	}

	app, err := h.refresher.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	h.app = app
	monitor := middleware.NewLatencyMonitor(64, time.Second)
	h.router = NewRouter(NewHandler(app, h.refresher, monitor), rc)
	return h
}

func (h *harness) read(config.Args) (*config.Config, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readErr != nil {
		return nil, h.readErr
	}
	return h.cfg, nil
}

func (h *harness) setConfig(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
	h.readErr = nil
}

func (h *harness) failRead(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readErr = err
}

// open builds in-memory sources whose behaviour is selected by Path.
func (h *harness) open(_ context.Context, id string, sc config.SourceConfig) (source.Source, error) {
	if sc.Path == pathBroken {
		return nil, errors.New("open " + id + ": no such archive")
	}
	if sc.Path == pathGated {
		h.opened <- struct{}{}
		<-h.gate
	}
	s := sourcetest.New(id, []byte("tile:"+id))
	switch sc.Path {
	case pathEmpty:
		s.Payload = nil
	case pathTransient:
		s.Err = source.Transient(errors.New("upstream unavailable"))
	case pathFatal:
		s.Err = errors.New("checksum mismatch in secret/path/tiles.db")
	}
	if sc.Name != "" {
		s.Meta.Name = sc.Name
	}
	s.Meta.Description = sc.Description
	if sc.MinZoom != nil {
		s.Meta.MinZoom = source.Zoom(uint8(*sc.MinZoom))
	}
	if sc.MaxZoom != nil {
		s.Meta.MaxZoom = source.Zoom(uint8(*sc.MaxZoom))
	}
	return &closingSource{Static: s, closed: &h.closed}, nil
}

func (h *harness) runDrains() {
	h.mu.Lock()
	drains := h.drains
	h.drains = nil
	h.mu.Unlock()
	for _, f := range drains {
		f()
	}
}

func (h *harness) pendingDrains() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.drains)
}

func (h *harness) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(target string) *httptest.ResponseRecorder {
	return h.do(http.MethodGet, target, nil)
}

func (h *harness) refresh() *httptest.ResponseRecorder {
	return h.do(http.MethodPost, "/refresh", nil)
}

// testConfig declares one directory source per id.
func testConfig(ids ...string) *config.Config {
	cfg := &config.Config{Sources: make(map[string]config.SourceConfig, len(ids))}
	for _, id := range ids {
		cfg.Sources[id] = config.SourceConfig{Kind: config.KindDirectory, Path: "/tiles/" + id}
	}
	return cfg
}

func withSource(cfg *config.Config, id string, sc config.SourceConfig) *config.Config {
	if sc.Kind == "" {
		sc.Kind = config.KindDirectory
	}
	cfg.Sources[id] = sc
	return cfg
}

func intPtr(v int) *int { return &v }

func readBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	b, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, want, strings.TrimSpace(rec.Body.String()))
	}
}
