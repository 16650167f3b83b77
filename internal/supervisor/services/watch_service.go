// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/logging"
)

// DefaultWatchDebounce coalesces the burst of events editors produce for
// a single save.
const DefaultWatchDebounce = 500 * time.Millisecond

// Refresher rebuilds the server state.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// WatchFunc starts watching a file. config.WatchFile in production.
type WatchFunc func(path string, onChange func(), onError func(error)) (io.Closer, error)

// ConfigWatchService refreshes the server when the config file changes.
// A failed refresh keeps the current state and is already logged by the
// refresher, so the watcher keeps running.
type ConfigWatchService struct {
	path      string
	refresher Refresher
	watch     WatchFunc
	debounce  time.Duration
}

// NewConfigWatchService watches path and calls refresher on changes.
func NewConfigWatchService(path string, refresher Refresher) *ConfigWatchService {
	return &ConfigWatchService{
		path:      path,
		refresher: refresher,
		watch:     watchConfigFile,
		debounce:  DefaultWatchDebounce,
	}
}

func watchConfigFile(path string, onChange func(), onError func(error)) (io.Closer, error) {
	w, err := config.WatchFile(path, onChange, onError)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Serve implements suture.Service.
func (s *ConfigWatchService) Serve(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	watcher, err := s.watch(s.path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, func(err error) {
		logging.Warn().Err(err).Str("path", s.path).Msg("Config watcher error")
	})
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	logging.Info().Str("path", s.path).Msg("Watching config file for changes")

	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			timer.Reset(s.debounce)
		case <-timer.C:
			logging.Info().Str("path", s.path).Msg("Config file changed, refreshing")
			_ = s.refresher.Refresh(ctx)
		}
	}
}

// String names the service in supervisor logs.
func (s *ConfigWatchService) String() string {
	return "config-watcher"
}
