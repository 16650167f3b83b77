// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/middleware"
)

// RouterConfig holds the settings fixed when the router is built.
type RouterConfig struct {
	CORSOrigins []string

	// RefreshRateLimit is the number of POST /refresh calls allowed per
	// client IP and minute. Zero disables the limit.
	RefreshRateLimit int
}

// RouterConfigFrom extracts the router settings of a server config.
func RouterConfigFrom(cfg config.ServerConfig) RouterConfig {
	return RouterConfig{CORSOrigins: cfg.CORSOrigins, RefreshRateLimit: cfg.RefreshRateLimit}
}

// NewRouter builds the route table. Static routes take precedence over
// /{source_id} because chi matches static segments first, and the reserved
// IDs keep sources from colliding with them.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.CleanPath)
	r.Use(chimiddleware.StripSlashes)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	if h.monitor != nil {
		r.Use(h.monitor.Middleware)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.GetHead)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RewriteURLHeader},
		MaxAge:         86400,
	}))

	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.With(middleware.Compress(0)).Get("/catalog", h.Catalog)
	r.Get("/status", h.Status)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	refresh := r.With()
	if cfg.RefreshRateLimit > 0 {
		refresh = r.With(httprate.LimitByIP(cfg.RefreshRateLimit, time.Minute))
	}
	refresh.Post("/refresh", h.Refresh)

	// Sprite and font routes exist only while the live generation has the
	// feature, so a refresh can switch them on or off.
	r.With(whenEnabled(h.spritesEnabled)).Get("/sprite/{file}", h.Sprite)
	r.With(whenEnabled(h.fontsEnabled)).Get("/font/{fontstack}/{range}", h.Font)

	r.With(middleware.Compress(middleware.DefaultCompressMinSize)).Get("/{source_id}", h.TileJSON)
	r.Get("/{source_id}/{z}/{x}/{y}", h.Tile)

	r.NotFound(noRoute)
	return r
}

func noRoute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorEnvelope{Error: APIError{Code: ErrCodeNotFound, Message: "no route for " + r.URL.Path}})
}

// whenEnabled answers like an unregistered route while enabled reports false.
func whenEnabled(enabled func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled() {
				noRoute(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
