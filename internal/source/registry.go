// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package source

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// CatalogEntry is the public summary of one tile source.
type CatalogEntry struct {
	ContentType     string `json:"content_type"`
	ContentEncoding string `json:"content_encoding,omitempty"`
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	Attribution     string `json:"attribution,omitempty"`
}

// TileCatalog maps source IDs to their catalog entries.
type TileCatalog map[string]CatalogEntry

// TileSources is an immutable registry of sources keyed by ID.
type TileSources struct {
	sources map[string]Source
}

// NewTileSources builds a registry. Duplicate IDs are an error.
func NewTileSources(srcs ...Source) (*TileSources, error) {
	m := make(map[string]Source, len(srcs))
	for _, s := range srcs {
		id := s.ID()
		if _, dup := m[id]; dup {
			return nil, fmt.Errorf("duplicate source id %q", id)
		}
		m[id] = s
	}
	return &TileSources{sources: m}, nil
}

// Get returns the source registered under id.
func (t *TileSources) Get(id string) (Source, error) {
	if t != nil {
		if s, ok := t.sources[id]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, id)
}

// Len returns the number of sources.
func (t *TileSources) Len() int {
	if t == nil {
		return 0
	}
	return len(t.sources)
}

// IDs returns the registered IDs in sorted order.
func (t *TileSources) IDs() []string {
	if t == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(t.sources))
}

// Clone returns a registry of cloned sources.
func (t *TileSources) Clone() *TileSources {
	if t == nil {
		return &TileSources{sources: map[string]Source{}}
	}
	m := make(map[string]Source, len(t.sources))
	for id, s := range t.sources {
		m[id] = s.Clone()
	}
	return &TileSources{sources: m}
}

// Catalog projects every source into a TileCatalog.
func (t *TileSources) Catalog() TileCatalog {
	cat := make(TileCatalog, t.Len())
	if t == nil {
		return cat
	}
	for id, s := range t.sources {
		tj := s.TileJSON()
		info := s.TileInfo()
		cat[id] = CatalogEntry{
			ContentType:     info.ContentType(),
			ContentEncoding: info.ContentEncoding(),
			Name:            tj.Name,
			Description:     tj.Description,
			Attribution:     tj.Attribution,
		}
	}
	return cat
}

// Close closes every source that holds resources.
func (t *TileSources) Close() error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, id := range t.IDs() {
		if c, ok := t.sources[id].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close source %q: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}
