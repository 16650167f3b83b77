// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"context"
	"net"
	"net/http"
	"slices"

	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/logging"
	"github.com/tomtom215/cartotile/internal/middleware"
)

// latencyWindow is the number of requests kept for /status.
const latencyWindow = 2048

// Server is a bootstrapped application: state, refresher and handler.
type Server struct {
	App       *AppState
	Refresher *Refresher
	Handler   http.Handler
}

// New resolves the first generation from cfg and builds the router. args
// are kept for later refreshes, which re-read configuration with them.
func New(ctx context.Context, args config.Args, cfg *config.Config) (*Server, error) {
	refresher := NewRefresher(args, NewResolver())
	app, err := refresher.BootstrapWith(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srvCfg := app.SrvConfig.Read()
	monitor := middleware.NewLatencyMonitor(latencyWindow, middleware.DefaultSlowThreshold)
	h := NewHandler(app, refresher, monitor)

	return &Server{
		App:       app,
		Refresher: refresher,
		Handler:   NewRouter(h, RouterConfigFrom(srvCfg)),
	}, nil
}

// HTTPServer returns an http.Server for one listener using the serving
// configuration of the current generation.
func (s *Server) HTTPServer() *http.Server {
	cfg := s.App.SrvConfig.Read()
	return &http.Server{
		Handler:      s.Handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.KeepAlive,
	}
}

// Bind binds every configured listen address.
func (s *Server) Bind(ctx context.Context) ([]net.Listener, error) {
	return Bind(ctx, s.App.SrvConfig.Read().Addresses())
}

// Close closes the current generation's sources.
func (s *Server) Close() error {
	return s.App.State.Read().Close()
}

// WarnRestartRequired logs serving settings that differ between before and
// after and only take effect on restart.
func WarnRestartRequired(before, after config.ServerConfig) {
	if !slices.Equal(before.Addresses(), after.Addresses()) ||
		before.KeepAlive != after.KeepAlive ||
		before.WorkerProcesses != after.WorkerProcesses ||
		before.ReadTimeout != after.ReadTimeout ||
		before.WriteTimeout != after.WriteTimeout ||
		!slices.Equal(before.CORSOrigins, after.CORSOrigins) ||
		before.RefreshRateLimit != after.RefreshRateLimit {
		logging.Warn().
			Strs("listen_addresses", after.Addresses()).
			Dur("keep_alive", after.KeepAlive).
			Int("worker_processes", after.WorkerProcesses).
			Msg("Serving configuration changed; listener, timeout, worker and CORS settings apply after restart")
	}
}
