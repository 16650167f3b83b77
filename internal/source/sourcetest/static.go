// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package sourcetest provides in-memory sources for tests.
package sourcetest

import (
	"context"
	"net/url"
	"sync/atomic"

	"github.com/tomtom215/cartotile/internal/source"
)

// Static is a Source that serves a fixed payload for every coordinate, or
// fails with Err when set.
type Static struct {
	Name    string
	Payload []byte
	Info    source.TileInfo
	Meta    source.TileJSON
	Err     error

	// Calls counts GetTile invocations across clones.
	Calls *atomic.Int64
}

// New returns a Static MVT source with the given id and payload.
func New(id string, payload []byte) *Static {
	return &Static{
		Name:    id,
		Payload: payload,
		Info:    source.TileInfo{Format: source.FormatMVT},
		Meta:    source.TileJSON{TileJSON: source.TileJSONVersion, Name: id},
		Calls:   &atomic.Int64{},
	}
}

func (s *Static) ID() string { return s.Name }
func (s *Static) TileJSON() source.TileJSON { return s.Meta }
func (s *Static) TileInfo() source.TileInfo { return s.Info }

func (s *Static) GetTile(ctx context.Context, _ source.TileCoord, _ url.Values) ([]byte, error) {
	if s.Calls != nil {
		s.Calls.Add(1)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Payload, nil
}

func (s *Static) Clone() source.Source {
	c := *s
	return &c
}
