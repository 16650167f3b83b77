// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"context"
	"net"
)

// Bind listens on every address. If any address fails, the listeners
// opened so far are closed and a *BindError is returned.
func Bind(ctx context.Context, addrs []string) ([]net.Listener, error) {
	var lc net.ListenConfig
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return nil, &BindError{Addr: addr, Err: err}
		}
		listeners = append(listeners, ln)
	}
	return listeners, nil
}
