// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// HTTPServer matches the *http.Server lifecycle methods used here.
type HTTPServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// ListenFunc re-binds an address after the listener was lost.
type ListenFunc func(ctx context.Context, addr string) (net.Listener, error)

// HTTPServerService serves HTTP on a listener bound before the tree
// started, so bind failures surface at start-up rather than as restarts.
//
// http.Server.Serve closes its listener when it fails. A restarted
// service binds the same address again.
type HTTPServerService struct {
	server          HTTPServer
	listener        net.Listener
	addr            string
	listen          ListenFunc
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server and the listener it serves on.
func NewHTTPServerService(server HTTPServer, l net.Listener, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		listener:        l,
		addr:            l.Addr().String(),
		listen:          listenTCP,
		shutdownTimeout: shutdownTimeout,
	}
}

func listenTCP(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	l := h.listener
	h.listener = nil
	if l == nil {
		var err error
		if l, err = h.listen(ctx, h.addr); err != nil {
			return fmt.Errorf("http server %s: %w", h.addr, err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server %s failed: %w", h.addr, err)
		}
		return nil

	case <-ctx.Done():
		// The parent context is already canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server %s shutdown failed: %w", h.addr, err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String names the service in supervisor logs.
func (h *HTTPServerService) String() string {
	return "http-server " + h.addr
}
