// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tile pipeline

	TileRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_requests_total",
			Help: "Tile requests by source and outcome",
		},
		[]string{"source", "outcome"}, // "ok", "empty", "not_found", "invalid", "transient", "failed"
	)

	TileFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tile_fetch_duration_seconds",
			Help:    "Duration of backend tile fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	TileBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tile_response_bytes",
			Help:    "Size of returned tile payloads",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B .. 4MiB
		},
		[]string{"source"},
	)

	// Tile cache

	TileCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_cache_hits_total",
			Help: "Total number of tile cache hits",
		},
	)

	TileCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_cache_misses_total",
			Help: "Total number of tile cache misses",
		},
	)

	TileCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tile_cache_entries",
			Help: "Current number of cached tiles in the active generation",
		},
	)

	// Hot reload

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_refresh_total",
			Help: "Configuration refresh attempts by result and failing stage",
		},
		[]string{"result", "stage"}, // result: "success", "failure"; stage: "", "load", "merge", "finalize", "resolve", "catalog"
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "config_refresh_duration_seconds",
			Help:    "Duration of configuration refreshes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StateGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "server_state_generation",
			Help: "Generation number of the server state currently being served",
		},
	)

	Sources = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registered_sources",
			Help: "Number of registered sources by kind",
		},
		[]string{"kind"}, // "tiles", "sprites", "fonts"
	)

	// API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of requests currently being handled",
		},
	)

	// Upstream circuit breakers

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Build information; the value is always 1",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records a completed HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordTile records the outcome of one tile request.
func RecordTile(sourceID, outcome string, size int) {
	TileRequests.WithLabelValues(sourceID, outcome).Inc()
	if outcome == "ok" {
		TileBytes.WithLabelValues(sourceID).Observe(float64(size))
	}
}

// RecordRefresh records a refresh attempt. stage is empty on success.
func RecordRefresh(stage string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	RefreshTotal.WithLabelValues(result, stage).Inc()
	RefreshDuration.Observe(duration.Seconds())
}

// SetSourceCounts publishes the registry sizes of the active generation.
func SetSourceCounts(tiles, sprites, fonts int) {
	Sources.WithLabelValues("tiles").Set(float64(tiles))
	Sources.WithLabelValues("sprites").Set(float64(sprites))
	Sources.WithLabelValues("fonts").Set(float64(fonts))
}
