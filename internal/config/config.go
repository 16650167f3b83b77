// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package config loads and validates the server configuration.
//
// Configuration is layered with koanf, lowest priority first:
//
//  1. Built-in defaults (defaultConfig)
//  2. YAML file (--config, CONFIG_PATH, or the first of DefaultConfigPaths)
//  3. Mapped environment variables (LISTEN_ADDRESSES, LOG_LEVEL, ...)
//  4. Start-up command line overrides (Args)
//
// Read performs all four steps and Finalize. It is used identically at
// start-up and by every hot reload, so a refresh sees exactly the
// precedence the process started with.
//
// Example config.yaml:
//
//	server:
//	  listen_addresses: "0.0.0.0:3000"
//	  keep_alive: 75s
//	cache:
//	  entries: 20000
//	sources:
//	  roads:
//	    kind: directory
//	    path: /data/roads
//	    format: pbf
//	    encoding: gzip
//	  basemap:
//	    kind: upstream
//	    url: https://tiles.example.com/{z}/{x}/{y}.png
//	sprites:
//	  paths: [/data/sprites/streets]
//	fonts:
//	  paths: [/data/fonts]
package config

import (
	"strings"
	"time"
)

// Source kinds.
const (
	KindDirectory = "directory"
	KindArchive   = "archive"
	KindUpstream  = "upstream"
	KindSpatial   = "spatial"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig            `koanf:"server"`
	Logging LoggingConfig           `koanf:"logging"`
	Cache   CacheConfig             `koanf:"cache"`
	Sources map[string]SourceConfig `koanf:"sources"`
	Sprites SpriteConfig            `koanf:"sprites"`
	Fonts   FontConfig              `koanf:"fonts"`
}

// ServerConfig holds the runtime-tunable serving settings. It is held in
// its own slot by the server and replaced on every refresh.
type ServerConfig struct {
	// ListenAddresses is a comma separated list of host:port pairs.
	// Changing it takes effect at the next restart.
	ListenAddresses string `koanf:"listen_addresses"`

	// KeepAlive is the idle timeout of keep-alive connections.
	KeepAlive time.Duration `koanf:"keep_alive" validate:"gte=0"`

	// WorkerProcesses bounds the number of OS threads executing Go code.
	// Zero means one per CPU.
	WorkerProcesses int `koanf:"worker_processes" validate:"gte=0"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`

	// DrainTimeout is how long a superseded server state stays open for
	// in-flight requests before its sources are closed.
	DrainTimeout time.Duration `koanf:"drain_timeout" validate:"gte=0"`

	// RefreshRateLimit is the number of POST /refresh calls allowed per
	// client per minute. Zero disables the limit.
	RefreshRateLimit int `koanf:"refresh_rate_limit" validate:"gte=0"`

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// WatchConfig refreshes automatically when the config file changes.
	WatchConfig bool `koanf:"watch_config"`
}

// Addresses splits ListenAddresses into trimmed, non-empty entries.
func (s ServerConfig) Addresses() []string {
	var out []string
	for _, a := range strings.Split(s.ListenAddresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig sizes the shared tile cache. Entries == 0 disables it.
type CacheConfig struct {
	Entries   int           `koanf:"entries" validate:"gte=0"`
	MaxSizeMB int64         `koanf:"max_size_mb" validate:"gte=0"`
	TTL       time.Duration `koanf:"ttl" validate:"gte=0"`
}

// SourceConfig declares one tile source. Which fields apply depends on
// Kind.
type SourceConfig struct {
	Kind        string    `koanf:"kind" validate:"required,oneof=directory archive upstream spatial"`
	Name        string    `koanf:"name"`
	Description string    `koanf:"description"`
	Attribution string    `koanf:"attribution"`
	MinZoom     *int      `koanf:"minzoom" validate:"omitempty,gte=0,lte=30"`
	MaxZoom     *int      `koanf:"maxzoom" validate:"omitempty,gte=0,lte=30"`
	Bounds      []float64 `koanf:"bounds" validate:"omitempty,lonlatbounds"`

	// Format and Encoding describe stored tiles. Archive sources may
	// also carry them in their metadata.
	Format   string `koanf:"format" validate:"omitempty,tileformat"`
	Encoding string `koanf:"encoding" validate:"omitempty,tileencoding"`

	// MaxAge is the Cache-Control max-age sent with tiles.
	MaxAge time.Duration `koanf:"max_age" validate:"gte=0"`

	// Path is the tile directory (directory), badger directory (archive)
	// or DuckDB database file (spatial).
	Path string `koanf:"path"`

	// URL is the upstream template with {z}, {x}, {y} placeholders.
	URL       string            `koanf:"url" validate:"omitempty,url"`
	Timeout   time.Duration     `koanf:"timeout" validate:"gte=0"`
	RateLimit float64           `koanf:"rate_limit" validate:"gte=0"`
	Headers   map[string]string `koanf:"headers"`

	// Spatial table settings.
	Table          string   `koanf:"table"`
	GeometryColumn string   `koanf:"geometry_column"`
	SRID           int      `koanf:"srid" validate:"gte=0"`
	Layer          string   `koanf:"layer"`
	Properties     []string `koanf:"properties"`
	Extent         int      `koanf:"extent" validate:"gte=0"`
	Buffer         int      `koanf:"buffer" validate:"gte=0"`
}

// SpriteConfig lists sprite sheet directories. Each directory in Paths is
// registered under its base name; Sources maps explicit IDs to
// directories.
type SpriteConfig struct {
	Paths   []string          `koanf:"paths"`
	Sources map[string]string `koanf:"sources"`
}

// Enabled reports whether any sprite source is configured.
func (s SpriteConfig) Enabled() bool {
	return len(s.Paths) > 0 || len(s.Sources) > 0
}

// FontConfig lists font root directories. Every subdirectory of a root is
// a font stack holding {start}-{end}.pbf glyph ranges.
type FontConfig struct {
	Paths []string `koanf:"paths"`
}

// Enabled reports whether any font directory is configured.
func (f FontConfig) Enabled() bool {
	return len(f.Paths) > 0
}
