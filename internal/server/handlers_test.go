// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/middleware"
	"github.com/tomtom215/cartotile/internal/source"
)

func TestIndexAndHealth(t *testing.T) {
	h := newHarness(t, testConfig("roads"))

	rec := h.get("/")
	assertStatus(t, rec, http.StatusOK)
	if got := readBody(t, rec); got != Banner {
		t.Errorf("GET / body = %q, want banner", got)
	}

	rec = h.get("/health")
	assertStatus(t, rec, http.StatusOK)
	if got := readBody(t, rec); got != "OK" {
		t.Errorf("GET /health body = %q, want OK", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
}

func TestHealthDuringSwapLocks(t *testing.T) {
	h := newHarness(t, testConfig("roads"))

	// Health must not touch any slot.
	h.app.State.mu.Lock()
	h.app.Catalog.mu.Lock()
	defer h.app.State.mu.Unlock()
	defer h.app.Catalog.mu.Unlock()

	assertStatus(t, h.get("/health"), http.StatusOK)
}

func TestCatalog(t *testing.T) {
	cfg := withSource(testConfig("roads"), "terrain", config.SourceConfig{Path: "/t", Name: "Terrain", Description: "Hillshade"})
	h := newHarness(t, cfg)

	rec := h.get("/catalog")
	assertStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var cat Catalog
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(cat.Tiles) != 2 {
		t.Fatalf("catalog has %d tile sources, want 2", len(cat.Tiles))
	}
	terrain := cat.Tiles["terrain"]
	if terrain.Name != "Terrain" || terrain.Description != "Hillshade" {
		t.Errorf("terrain entry = %+v", terrain)
	}
	if terrain.ContentType != "application/x-protobuf" {
		t.Errorf("terrain content type = %q", terrain.ContentType)
	}
	if strings.Contains(rec.Body.String(), `"sprites"`) || strings.Contains(rec.Body.String(), `"fonts"`) {
		t.Errorf("disabled features must be omitted: %s", rec.Body.String())
	}
}

func TestCatalogCompressed(t *testing.T) {
	h := newHarness(t, testConfig("roads"))

	rec := h.do(http.MethodGet, "/catalog", http.Header{"Accept-Encoding": {"gzip"}})
	assertStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}
}

func TestTileResponses(t *testing.T) {
	cfg := testConfig("roads")
	withSource(cfg, "blank", config.SourceConfig{Path: pathEmpty})
	withSource(cfg, "detail", config.SourceConfig{Path: "/d", MinZoom: intPtr(2), MaxZoom: intPtr(4)})
	withSource(cfg, "remote", config.SourceConfig{Path: pathTransient})
	withSource(cfg, "corrupt", config.SourceConfig{Path: pathFatal})
	h := newHarness(t, cfg)

	tests := []struct {
		name   string
		target string
		status int
		body   string
		code   string
	}{
		{"tile", "/roads/0/0/0", http.StatusOK, "tile:roads", ""},
		{"y with extension", "/roads/3/1/2.pbf", http.StatusOK, "tile:roads", ""},
		{"trailing slash", "/roads/3/1/2/", http.StatusOK, "tile:roads", ""},
		{"unknown source", "/nowhere/0/0/0", http.StatusNotFound, "", ErrCodeNotFound},
		{"x out of range", "/roads/1/2/0", http.StatusBadRequest, "", ErrCodeBadRequest},
		{"zoom out of range", "/roads/31/0/0", http.StatusBadRequest, "", ErrCodeBadRequest},
		{"not a number", "/roads/a/0/0", http.StatusBadRequest, "", ErrCodeBadRequest},
		{"empty tile", "/blank/0/0/0", http.StatusNoContent, "", ""},
		{"below minzoom", "/detail/1/0/0", http.StatusNoContent, "", ""},
		{"above maxzoom", "/detail/5/0/0", http.StatusNoContent, "", ""},
		{"inside zoom range", "/detail/3/0/0", http.StatusOK, "tile:detail", ""},
		{"transient failure", "/remote/0/0/0", http.StatusServiceUnavailable, "", ErrCodeServiceUnavailable},
		{"permanent failure", "/corrupt/0/0/0", http.StatusInternalServerError, "", ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.get(tt.target)
			assertStatus(t, rec, tt.status)

			if tt.code == "" {
				if got := readBody(t, rec); got != tt.body {
					t.Errorf("body = %q, want %q", got, tt.body)
				}
				return
			}
			var env errorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if env.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.code)
			}
			if env.Error.RequestID == "" {
				t.Error("error response without request_id")
			}
		})
	}
}

func TestTileHeaders(t *testing.T) {
	h := newHarness(t, testConfig("roads"))

	rec := h.get("/roads/2/1/1")
	assertStatus(t, rec, http.StatusOK)
	for header, want := range map[string]string{
		"Content-Type":   "application/x-protobuf",
		"Cache-Control":  "public, max-age=3600",
		"Content-Length": "10",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if got := rec.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding = %q, want none", got)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestTileFailuresHideDetail(t *testing.T) {
	h := newHarness(t, withSource(testConfig(), "corrupt", config.SourceConfig{Path: pathFatal}))

	rec := h.get("/corrupt/0/0/0")
	assertStatus(t, rec, http.StatusInternalServerError)
	if body := rec.Body.String(); strings.Contains(body, "secret") || !strings.Contains(body, internalErrorMessage) {
		t.Errorf("500 body leaks detail or lacks generic message: %s", body)
	}
}

func TestTileRetryAfter(t *testing.T) {
	h := newHarness(t, withSource(testConfig(), "remote", config.SourceConfig{Path: pathTransient}))

	rec := h.get("/remote/4/3/2")
	assertStatus(t, rec, http.StatusServiceUnavailable)
	if got := rec.Header().Get("Retry-After"); got != "5" {
		t.Errorf("Retry-After = %q, want 5", got)
	}
}

func TestHeadTile(t *testing.T) {
	h := newHarness(t, testConfig("roads"))

	rec := h.do(http.MethodHead, "/roads/0/0/0", nil)
	assertStatus(t, rec, http.StatusOK)
}

func TestTileJSONRoute(t *testing.T) {
	h := newHarness(t, withSource(testConfig(), "roads", config.SourceConfig{Path: "/r", Name: "Roads", MinZoom: intPtr(1)}))

	tests := []struct {
		name   string
		header http.Header
		want   string
	}{
		{"plain", nil, "http://example.com/roads/{z}/{x}/{y}.pbf"},
		{"forwarded", http.Header{"X-Forwarded-Proto": {"https"}, "X-Forwarded-Host": {"maps.example.org"}}, "https://maps.example.org/roads/{z}/{x}/{y}.pbf"},
		{"rewrite", http.Header{"X-Rewrite-Url": {"foo/bar.baz.pbf"}}, "http://example.com/oo/bar.baz/{z}/{x}/{y}.pbf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodGet, "http://example.com/roads", tt.header)
			assertStatus(t, rec, http.StatusOK)

			var doc source.TileJSON
			if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
				t.Fatalf("decode tilejson: %v", err)
			}
			if len(doc.Tiles) != 1 || doc.Tiles[0] != tt.want {
				t.Errorf("tiles = %v, want [%s]", doc.Tiles, tt.want)
			}
			if doc.Name != "Roads" || doc.Scheme != "tms" || doc.TileJSON != source.TileJSONVersion {
				t.Errorf("doc = %+v", doc)
			}
			if doc.MinZoom == nil || *doc.MinZoom != 1 {
				t.Errorf("minzoom = %v, want 1", doc.MinZoom)
			}
		})
	}

	assertStatus(t, h.get("/unknown"), http.StatusNotFound)
}

func TestStatus(t *testing.T) {
	h := newHarness(t, testConfig("a", "b"))
	assertStatus(t, h.get("/a/0/0/0"), http.StatusOK)

	rec := h.get("/status")
	assertStatus(t, rec, http.StatusOK)
	var st StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Generation != 1 || st.Sources != 2 {
		t.Errorf("status = %+v, want generation 1 with 2 sources", st)
	}
	if len(st.Routes) == 0 {
		t.Error("status lists no route statistics")
	}
}

func TestMetricsRoute(t *testing.T) {
	h := newHarness(t, testConfig("roads"))
	assertStatus(t, h.get("/roads/0/0/0"), http.StatusOK)

	rec := h.get("/metrics")
	assertStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "server_state_generation") {
		t.Error("metrics output lacks server_state_generation")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, testConfig("roads"))
	assertStatus(t, h.get("/roads/1/2"), http.StatusNotFound)
	assertStatus(t, h.do(http.MethodGet, "/refresh", nil), http.StatusMethodNotAllowed)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSpriteAndFontRoutes(t *testing.T) {
	dir := t.TempDir()
	spriteDir := filepath.Join(dir, "sprites", "streets")
	writeFile(t, filepath.Join(spriteDir, "sprite.json"), `{"park":{"width":16,"height":16,"x":0,"y":0,"pixelRatio":1}}`)
	writeFile(t, filepath.Join(spriteDir, "sprite.png"), "png-1x")
	fontRoot := filepath.Join(dir, "fonts")
	writeFile(t, filepath.Join(fontRoot, "Open Sans Regular", "0-255.pbf"), "glyphs-0")
	writeFile(t, filepath.Join(fontRoot, "Noto Sans", "256-511.pbf"), "glyphs-256")

	cfg := testConfig("roads")
	cfg.Sprites = config.SpriteConfig{Paths: []string{spriteDir}}
	cfg.Fonts = config.FontConfig{Paths: []string{fontRoot}}
	h := newHarness(t, cfg)

	tests := []struct {
		target string
		status int
		body   string
		ctype  string
	}{
		{"/sprite/streets.json", http.StatusOK, `{"park":{"width":16,"height":16,"x":0,"y":0,"pixelRatio":1}}`, "application/json"},
		{"/sprite/streets.png", http.StatusOK, "png-1x", "image/png"},
		{"/sprite/streets@2x.png", http.StatusNotFound, "", ""},
		{"/sprite/unknown.json", http.StatusNotFound, "", ""},
		{"/sprite/streets.svg", http.StatusNotFound, "", ""},
		{"/font/Open%20Sans%20Regular/0-255.pbf", http.StatusOK, "glyphs-0", "application/x-protobuf"},
		{"/font/Open%20Sans%20Regular,Noto%20Sans/256-511.pbf", http.StatusOK, "glyphs-256", "application/x-protobuf"},
		{"/font/Open%20Sans%20Regular/256-511.pbf", http.StatusNotFound, "", ""},
		{"/font/Open%20Sans%20Regular/1-255.pbf", http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := h.get(tt.target)
			assertStatus(t, rec, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			if got := readBody(t, rec); got != tt.body {
				t.Errorf("body = %q, want %q", got, tt.body)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.ctype {
				t.Errorf("Content-Type = %q, want %q", got, tt.ctype)
			}
		})
	}

	var cat Catalog
	if err := json.Unmarshal(h.get("/catalog").Body.Bytes(), &cat); err != nil {
		t.Fatal(err)
	}
	if got := cat.Sprites["streets"].Images; len(got) != 1 || got[0] != "park" {
		t.Errorf("sprite catalog images = %v", got)
	}
	if cat.Fonts["Open Sans Regular"].Ranges != 1 || cat.Fonts["Noto Sans"].Ranges != 1 {
		t.Errorf("font catalog = %+v", cat.Fonts)
	}
}

func TestSpriteAndFontRoutesFollowFeatures(t *testing.T) {
	dir := t.TempDir()
	spriteDir := filepath.Join(dir, "sprites", "streets")
	writeFile(t, filepath.Join(spriteDir, "sprite.json"), `{}`)
	writeFile(t, filepath.Join(spriteDir, "sprite.png"), "png")
	fontRoot := filepath.Join(dir, "fonts")
	writeFile(t, filepath.Join(fontRoot, "Noto Sans", "0-255.pbf"), "glyphs")

	h := newHarness(t, testConfig("roads"))
	for _, target := range []string{"/sprite/streets.json", "/font/Noto%20Sans/0-255.pbf"} {
		rec := h.get(target)
		assertStatus(t, rec, http.StatusNotFound)
		if !strings.Contains(rec.Body.String(), "no route for") {
			t.Errorf("GET %s without the feature: body = %s", target, rec.Body.String())
		}
	}

	cfg := testConfig("roads")
	cfg.Sprites = config.SpriteConfig{Paths: []string{spriteDir}}
	cfg.Fonts = config.FontConfig{Paths: []string{fontRoot}}
	h.setConfig(cfg)
	assertStatus(t, h.refresh(), http.StatusOK)

	assertStatus(t, h.get("/sprite/streets.json"), http.StatusOK)
	assertStatus(t, h.get("/font/Noto%20Sans/0-255.pbf"), http.StatusOK)

	h.setConfig(testConfig("roads"))
	assertStatus(t, h.refresh(), http.StatusOK)
	assertStatus(t, h.get("/sprite/streets.json"), http.StatusNotFound)
}
