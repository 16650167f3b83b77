// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package cache provides the shared tile result cache.
//
// LRU is a byte-slice least recently used cache bounded by entry count,
// payload size and TTL. TileCache layers request collapsing on top of it and
// is the value held in the server's cache slot; a nil *TileCache means
// caching is disabled.
package cache
