// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/tomtom215/cartotile/internal/source"
	"github.com/tomtom215/cartotile/internal/validation"
)

// Finalize validates the merged configuration and fills derived defaults.
// Every error is wrapped in an *Error with Op "finalize".
func (c *Config) Finalize() error {
	if err := validation.ValidateStruct(c); err != nil {
		return wrap(OpFinalize, err)
	}
	if err := c.validateServer(); err != nil {
		return wrap(OpFinalize, err)
	}
	if err := c.validateSources(); err != nil {
		return wrap(OpFinalize, err)
	}
	if err := c.validateSprites(); err != nil {
		return wrap(OpFinalize, err)
	}

	if c.Server.WorkerProcesses == 0 {
		c.Server.WorkerProcesses = runtime.NumCPU()
	}
	return nil
}

func (c *Config) validateServer() error {
	addrs := c.Server.Addresses()
	if len(addrs) == 0 {
		return errors.New("LISTEN_ADDRESSES must name at least one host:port")
	}
	for _, addr := range addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", addr, err)
		}
	}
	return nil
}

// validateSources checks every source and reports all failures at once.
func (c *Config) validateSources() error {
	ids := make([]string, 0, len(c.Sources))
	for id := range c.Sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var errs []error
	for _, id := range ids {
		if err := source.ValidateID(id); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := validateSource(c.Sources[id]); err != nil {
			errs = append(errs, fmt.Errorf("source %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func validateSource(sc SourceConfig) error {
	if err := validation.ValidateStruct(&sc); err != nil {
		return err
	}
	if sc.MinZoom != nil && sc.MaxZoom != nil && *sc.MinZoom > *sc.MaxZoom {
		return fmt.Errorf("minzoom %d is greater than maxzoom %d", *sc.MinZoom, *sc.MaxZoom)
	}

	switch sc.Kind {
	case KindDirectory, KindArchive:
		if sc.Path == "" {
			return fmt.Errorf("path is required for %s sources", sc.Kind)
		}
	case KindUpstream:
		if sc.URL == "" {
			return errors.New("url is required for upstream sources")
		}
		for _, p := range []string{"{z}", "{x}", "{y}"} {
			if !strings.Contains(sc.URL, p) {
				return fmt.Errorf("url must contain %s", p)
			}
		}
	case KindSpatial:
		if sc.Path == "" {
			return errors.New("path is required for spatial sources")
		}
		if sc.Table == "" {
			return errors.New("table is required for spatial sources")
		}
		if sc.Format != "" {
			if f, _ := source.ParseFormat(sc.Format); f != source.FormatMVT {
				return errors.New("spatial sources only produce mvt tiles")
			}
		}
	}
	return nil
}

func (c *Config) validateSprites() error {
	seen := make(map[string]bool)
	check := func(id string) error {
		if id == "" || id == "." || id == string(filepath.Separator) {
			return errors.New("sprite id must not be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate sprite id %q", id)
		}
		seen[id] = true
		return nil
	}
	for _, p := range c.Sprites.Paths {
		if err := check(filepath.Base(p)); err != nil {
			return err
		}
	}
	for id := range c.Sprites.Sources {
		if err := check(id); err != nil {
			return err
		}
	}
	return nil
}
