// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package directory serves tiles from a {z}/{x}/{y}.{ext} directory tree.
package directory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tomtom215/cartotile/internal/source"
)

// Config describes a tile directory.
type Config struct {
	Root   string
	Info   source.TileInfo
	Meta   source.TileJSON
	MaxAge time.Duration

	// Extension overrides the file extension derived from Info.Format.
	Extension string
}

// Source reads tiles from disk. It holds no open handles.
type Source struct {
	id   string
	root string
	ext  string
	cfg  Config
}

// New checks that cfg.Root is a directory and returns a Source.
func New(id string, cfg Config) (*Source, error) {
	st, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("tile directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("tile directory %s is not a directory", cfg.Root)
	}

	ext := cfg.Extension
	if ext == "" {
		ext = cfg.Info.Format.Extension()
	}
	if cfg.Info.Encoding == source.EncodingGzip && cfg.Extension == "" {
		ext += ".gz"
	}
	return &Source{id: id, root: cfg.Root, ext: ext, cfg: cfg}, nil
}

func (s *Source) ID() string { return s.id }
func (s *Source) TileJSON() source.TileJSON { return s.cfg.Meta }
func (s *Source) TileInfo() source.TileInfo { return s.cfg.Info }
func (s *Source) MaxAge() time.Duration { return s.cfg.MaxAge }

// Path returns the file that holds coord.
func (s *Source) Path(coord source.TileCoord) string {
	return filepath.Join(s.root,
		strconv.Itoa(int(coord.Z)),
		strconv.FormatUint(uint64(coord.X), 10),
		strconv.FormatUint(uint64(coord.Y), 10)+"."+s.ext)
}

// GetTile reads the tile file. A missing file is an empty tile.
func (s *Source) GetTile(ctx context.Context, coord source.TileCoord, _ url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(coord))
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	default:
		return nil, err
	}
}

func (s *Source) Clone() source.Source {
	c := *s
	return &c
}
