// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

/*
Package server holds the live server state, the refresh protocol that
replaces it, and the HTTP surface that reads it.

State Model:

AppState keeps seven independently locked slots: serving configuration,
server state, catalog, tile sources, tile cache, sprites and fonts. Request
handlers take short read locks on the slots they need and never hold a lock
while a tile is fetched.

Refresh:

Refresher.Refresh rebuilds a complete generation off to the side (load,
merge, finalize, resolve, catalog) and then write-locks every slot in a
fixed order to swap all of them at once:

	SrvConfig -> State -> Catalog -> Sources -> Cache -> Sprites -> Fonts

A failure before the swap leaves every slot untouched. Concurrent refreshes
serialize on the first write lock. The superseded generation is closed once
the drain timeout has passed.

Routes:

	GET  /                          banner
	GET  /health                    readiness probe
	GET  /catalog                   catalog of every source
	GET  /status                    generation, cache and latency summary
	GET  /metrics                   Prometheus metrics
	POST /refresh                   hot reload
	GET  /sprite/{file}             sprite sheets
	GET  /font/{fontstack}/{range}  glyph ranges
	GET  /{source_id}               TileJSON
	GET  /{source_id}/{z}/{x}/{y}   tiles
*/
package server
