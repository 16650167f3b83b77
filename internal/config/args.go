// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package config

import (
	"fmt"
	"strings"
	"time"
)

// Args are the start-up command line overrides. They are captured once and
// reapplied unchanged on every refresh; zero values mean "not set".
type Args struct {
	// ConfigPath is the resolved config file, or "" for defaults only.
	ConfigPath string

	ListenAddresses string
	KeepAlive       time.Duration
	WorkerProcesses int
	CacheEntries    *int
	WatchConfig     *bool
	LogLevel        string
	LogFormat       string
}

// MergeInto applies the overrides to cfg.
func (a Args) MergeInto(cfg *Config) error {
	if a.KeepAlive < 0 {
		return wrap(OpMerge, fmt.Errorf("keep-alive must not be negative, got %s", a.KeepAlive))
	}
	if a.WorkerProcesses < 0 {
		return wrap(OpMerge, fmt.Errorf("worker processes must not be negative, got %d", a.WorkerProcesses))
	}

	if s := strings.TrimSpace(a.ListenAddresses); s != "" {
		cfg.Server.ListenAddresses = s
	}
	if a.KeepAlive > 0 {
		cfg.Server.KeepAlive = a.KeepAlive
	}
	if a.WorkerProcesses > 0 {
		cfg.Server.WorkerProcesses = a.WorkerProcesses
	}
	if a.CacheEntries != nil {
		cfg.Cache.Entries = *a.CacheEntries
	}
	if a.WatchConfig != nil {
		cfg.Server.WatchConfig = *a.WatchConfig
	}
	if a.LogLevel != "" {
		cfg.Logging.Level = a.LogLevel
	}
	if a.LogFormat != "" {
		cfg.Logging.Format = a.LogFormat
	}
	return nil
}
