// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

/*
Package metrics provides Prometheus metrics for the tile server.

All collectors are registered with the default registry through promauto and
exposed at /metrics:

	curl http://localhost:3000/metrics

# Available Metrics

Tiles:
  - tile_requests_total{source,outcome}
  - tile_fetch_duration_seconds{source}
  - tile_response_bytes{source}
  - tile_cache_hits_total, tile_cache_misses_total, tile_cache_entries

Hot reload:
  - config_refresh_total{result,stage}
  - config_refresh_duration_seconds
  - server_state_generation
  - registered_sources{kind}

API:
  - api_requests_total{method,route,status_code}
  - api_request_duration_seconds{method,route}
  - api_active_requests

Upstream sources:
  - circuit_breaker_state{name}
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_transitions_total{name,from,to}

Route labels use the chi route pattern, never the raw path, so tile
coordinates do not explode label cardinality.
*/
package metrics
