// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

/*
Package services adapts server components to suture.Service.

HTTPServerService serves one pre-bound listener and shuts the server down
gracefully when its context ends. ConfigWatchService turns config file
writes into debounced refreshes. CacheJanitorService evicts expired tiles
on a ticker.

Every Serve returns ctx.Err() on shutdown and a wrapped error on failure,
which makes the supervisor restart the service.
*/
package services
