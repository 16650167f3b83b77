// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Command cartotile serves map tiles, TileJSON metadata, sprites and font
// glyphs from configured sources, and reloads its configuration without
// dropping connections.
//
// # Start-up
//
//  1. Read configuration (koanf: defaults, YAML file, environment, flags)
//  2. Initialize zerolog from the logging section
//  3. Resolve every source into the first server generation
//  4. Bind every listen address; any failure aborts start-up
//  5. Run the supervisor tree: one HTTP server per listener, plus the
//     config watcher and cache janitor when enabled
//
// # Reloading
//
// POST /refresh, or a write to the config file when watch_config is set,
// re-reads configuration with the flags given at start-up and swaps in a
// new generation. A failed reload keeps the current one. Listen
// addresses, keep-alive, worker count, timeouts and CORS settings only
// change on restart.
//
// # Examples
//
//	cartotile --config /etc/cartotile/config.yaml
//	cartotile --listen-addresses 127.0.0.1:3000,[::1]:3000 --watch
//	cartotile pack --name "Roads" --encoding gzip ./tiles/roads ./archives/roads
//
// # Signals
//
// SIGINT and SIGTERM stop accepting connections and wait up to
// shutdown_timeout for in-flight requests.
package main
