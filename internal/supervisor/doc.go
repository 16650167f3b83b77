// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

/*
Package supervisor runs the long-lived parts of the server under suture v4.

	RootSupervisor ("cartotile")
	├── ControlSupervisor ("control-layer")
	│   ├── ConfigWatchService (if watch_config)
	│   └── CacheJanitorService (if cache.ttl > 0)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService, one per listen address

Crashed services restart with suture's failure decay and backoff. Events
are logged through sutureslog into the zerolog logger.

Services return ctx.Err() on shutdown and a wrapped error on failure.
Returning nil stops a service without restarting it.

Tile sources are not supervised. They are owned by a server generation
and closed when a refresh retires that generation.
*/
package supervisor
