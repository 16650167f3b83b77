// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package source

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// WorldHalfExtent is half the side of the EPSG:3857 world square in meters.
// Spatial backends match rows by bounding-box containment, so this constant
// and the arithmetic in TileBounds must not change.
const WorldHalfExtent = 20037508.34

// Bounds is an axis-aligned box in EPSG:3857 meters.
type Bounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// TileBounds returns the projected bounding box of coord.
func TileBounds(coord TileCoord) Bounds {
	res := (WorldHalfExtent * 2) / float64(uint64(1)<<coord.Z)
	xmin := -WorldHalfExtent + float64(coord.X)*res
	ymax := WorldHalfExtent - float64(coord.Y)*res
	return Bounds{
		MinX: xmin,
		MinY: ymax - res,
		MaxX: xmin + res,
		MaxY: ymax,
	}
}

// LonLatBounds returns the WGS84 bound of coord.
func LonLatBounds(coord TileCoord) orb.Bound {
	return maptile.New(coord.X, coord.Y, maptile.Zoom(coord.Z)).Bound()
}
