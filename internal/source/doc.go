// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

/*
Package source defines the tile source abstraction shared by every backend.

A Source is a named provider of tile bytes and descriptive metadata. Concrete
backends (directory trees, badger archives, upstream XYZ servers, DuckDB
spatial tables) live under internal/backends and only need to satisfy the
Source interface.

# Registry

TileSources is an immutable map from source ID to Source. A configuration
refresh never mutates a registry; it resolves a brand-new one and the server
swaps it in:

	reg, err := source.NewTileSources(roads, terrain)
	src, err := reg.Get("roads")
	data, err := src.GetTile(ctx, source.TileCoord{Z: 3, X: 4, Y: 2}, nil)

# Source IDs

IDs are validated at configuration time with ValidateID. The reserved keywords
cover every fixed route of the HTTP surface plus names kept for later use, and
an ID may not end in a dot-number suffix such as ".1".

# Coordinates

TileCoord is an XYZ address. TileBounds projects it to the Web Mercator
square used by spatial backends; LonLatBounds returns the WGS84 bound.
*/
package source
