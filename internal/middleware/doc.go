// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

/*
Package middleware provides the HTTP middleware shared by every route.

Key Components:

  - RequestID: request tracing through X-Request-ID and the logging context
  - AccessLog: one structured log line per request
  - PrometheusMetrics: request counters and latency labelled by route pattern
  - LatencyMonitor: rolling per-route latency percentiles for /status
  - Compress: gzip for JSON documents via klauspost/compress/gzhttp

Middleware Stack:

The server installs them in this order:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(monitor.Middleware)
	r.Use(chimiddleware.Recoverer)

Route labels come from chi's RoutePattern, so /{source_id}/{z}/{x}/{y}
is one series regardless of how many tiles are requested.
*/
package middleware
