// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartotile/internal/fonts"
	"github.com/tomtom215/cartotile/internal/source"
	"github.com/tomtom215/cartotile/internal/sprites"
)

// Catalog is the public summary of a generation.
type Catalog struct {
	Tiles   source.TileCatalog `json:"tiles"`
	Sprites sprites.Catalog    `json:"sprites,omitempty"`
	Fonts   fonts.Catalog      `json:"fonts,omitempty"`
}

// BuildCatalog projects state into a Catalog. Disabled features leave
// their field nil.
func BuildCatalog(state *ServerState) Catalog {
	cat := Catalog{Tiles: state.Tiles.Catalog()}
	if state.Sprites != nil {
		cat.Sprites = state.Sprites.Catalog()
	}
	if state.Fonts != nil {
		cat.Fonts = state.Fonts.Catalog()
	}
	return cat
}

// CatalogDoc is a catalog together with its serialized form. The body is
// encoded once per refresh so every /catalog response of a generation is
// byte-identical.
type CatalogDoc struct {
	Catalog Catalog
	Body    []byte
}

// NewCatalogDoc builds and encodes the catalog of state.
func NewCatalogDoc(state *ServerState) (*CatalogDoc, error) {
	cat := BuildCatalog(state)
	body, err := json.Marshal(cat)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return &CatalogDoc{Catalog: cat, Body: body}, nil
}
