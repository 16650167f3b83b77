// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package source

import (
	"github.com/paulmach/orb"
)

// TileJSONVersion is the TileJSON specification version emitted by the server.
const TileJSONVersion = "3.0.0"

// VectorLayer describes one layer of a vector tile source.
type VectorLayer struct {
	ID          string            `json:"id"`
	Fields      map[string]string `json:"fields"`
	Description string            `json:"description,omitempty"`
	MinZoom     *uint8            `json:"minzoom,omitempty"`
	MaxZoom     *uint8            `json:"maxzoom,omitempty"`
}

// TileJSON is the metadata document served for each source.
type TileJSON struct {
	TileJSON     string        `json:"tilejson"`
	Tiles        []string      `json:"tiles"`
	Name         string        `json:"name,omitempty"`
	Description  string        `json:"description,omitempty"`
	Attribution  string        `json:"attribution,omitempty"`
	Version      string        `json:"version,omitempty"`
	Scheme       string        `json:"scheme,omitempty"`
	MinZoom      *uint8        `json:"minzoom,omitempty"`
	MaxZoom      *uint8        `json:"maxzoom,omitempty"`
	Bounds       []float64     `json:"bounds,omitempty"`
	Center       []float64     `json:"center,omitempty"`
	VectorLayers []VectorLayer `json:"vector_layers,omitempty"`
}

// Zoom returns a pointer to z, for the optional zoom fields.
func Zoom(z uint8) *uint8 {
	return &z
}

// SetBound fills Bounds and Center from a WGS84 bound. The center zoom is
// MinZoom when set.
func (t *TileJSON) SetBound(b orb.Bound) {
	t.Bounds = []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	c := b.Center()
	var z float64
	if t.MinZoom != nil {
		z = float64(*t.MinZoom)
	}
	t.Center = []float64{c.Lon(), c.Lat(), z}
}

// Bound returns Bounds as an orb.Bound. ok is false when no bounds are set.
func (t TileJSON) Bound() (b orb.Bound, ok bool) {
	if len(t.Bounds) != 4 {
		return orb.Bound{}, false
	}
	return orb.Bound{
		Min: orb.Point{t.Bounds[0], t.Bounds[1]},
		Max: orb.Point{t.Bounds[2], t.Bounds[3]},
	}, true
}

// Covers reports whether coord lies inside the advertised zoom range and
// bounds. Sources without a zoom range or bounds cover everything.
func (t TileJSON) Covers(coord TileCoord) bool {
	if t.MinZoom != nil && coord.Z < *t.MinZoom {
		return false
	}
	if t.MaxZoom != nil && coord.Z > *t.MaxZoom {
		return false
	}
	if b, ok := t.Bound(); ok {
		return LonLatBounds(coord).Intersects(b)
	}
	return true
}
