// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package sprites serves prebuilt sprite sheets.
//
// A sprite directory holds sprite.json and sprite.png, plus optional
// sprite@2x.json and sprite@2x.png for high-density displays. Sheets are
// read into memory when the registry is built, so a registry never changes
// after construction.
package sprites

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// ErrSpriteNotFound is returned for unknown sprite IDs and missing
// variants.
var ErrSpriteNotFound = errors.New("sprite not found")

// Image is one entry of a sprite index.
type Image struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	PixelRatio float64 `json:"pixelRatio"`
	SDF        bool    `json:"sdf,omitempty"`
}

// Variant selects the index or the image at a pixel ratio.
type Variant struct {
	Retina bool
	JSON   bool
}

// ParseVariant parses the file part of a sprite route: "{id}.json",
// "{id}.png", "{id}@2x.json" or "{id}@2x.png".
func ParseVariant(file string) (id string, v Variant, ok bool) {
	switch {
	case strings.HasSuffix(file, ".json"):
		v.JSON = true
		id = strings.TrimSuffix(file, ".json")
	case strings.HasSuffix(file, ".png"):
		id = strings.TrimSuffix(file, ".png")
	default:
		return "", v, false
	}
	if base, found := strings.CutSuffix(id, "@2x"); found {
		v.Retina = true
		id = base
	}
	return id, v, id != ""
}

// ContentType returns the media type of the variant.
func (v Variant) ContentType() string {
	if v.JSON {
		return "application/json"
	}
	return "image/png"
}

func (v Variant) fileName() string {
	name := "sprite"
	if v.Retina {
		name += "@2x"
	}
	if v.JSON {
		return name + ".json"
	}
	return name + ".png"
}

// Sheet is a loaded sprite sheet.
type Sheet struct {
	Dir    string
	Images []string

	files map[Variant][]byte
}

// Load reads the sheet in dir. sprite.json and sprite.png are required.
func Load(dir string) (*Sheet, error) {
	s := &Sheet{Dir: dir, files: make(map[Variant][]byte, 4)}
	for _, v := range []Variant{{JSON: true}, {}, {Retina: true, JSON: true}, {Retina: true}} {
		data, err := os.ReadFile(filepath.Join(dir, v.fileName()))
		if err != nil {
			if v.Retina && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("sprite %s: %w", dir, err)
		}
		s.files[v] = data
	}

	var index map[string]Image
	if err := json.Unmarshal(s.files[Variant{JSON: true}], &index); err != nil {
		return nil, fmt.Errorf("sprite %s: parse index: %w", dir, err)
	}
	s.Images = slices.Sorted(maps.Keys(index))
	return s, nil
}

// Get returns the bytes of a variant.
func (s *Sheet) Get(v Variant) ([]byte, bool) {
	data, ok := s.files[v]
	return data, ok
}

// CatalogEntry lists the images of one sheet.
type CatalogEntry struct {
	Images []string `json:"images"`
}

// Catalog maps sprite IDs to their entries.
type Catalog map[string]CatalogEntry

// Sources is an immutable sprite registry.
type Sources struct {
	sheets map[string]*Sheet
}

// New loads every sheet. Paths register under their base name; named maps
// explicit IDs to directories.
func New(paths []string, named map[string]string) (*Sources, error) {
	dirs := make(map[string]string, len(paths)+len(named))
	for _, p := range paths {
		id := filepath.Base(p)
		if _, dup := dirs[id]; dup {
			return nil, fmt.Errorf("duplicate sprite id %q", id)
		}
		dirs[id] = p
	}
	for id, p := range named {
		if _, dup := dirs[id]; dup {
			return nil, fmt.Errorf("duplicate sprite id %q", id)
		}
		dirs[id] = p
	}

	sheets := make(map[string]*Sheet, len(dirs))
	for _, id := range slices.Sorted(maps.Keys(dirs)) {
		sheet, err := Load(dirs[id])
		if err != nil {
			return nil, err
		}
		sheets[id] = sheet
	}
	return &Sources{sheets: sheets}, nil
}

// Get returns the bytes of a sheet variant.
func (s *Sources) Get(id string, v Variant) ([]byte, error) {
	if s != nil {
		if sheet, ok := s.sheets[id]; ok {
			if data, ok := sheet.Get(v); ok {
				return data, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSpriteNotFound, id)
}

// Len returns the number of sheets.
func (s *Sources) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sheets)
}

// Catalog lists every sheet.
func (s *Sources) Catalog() Catalog {
	cat := make(Catalog, s.Len())
	if s == nil {
		return cat
	}
	for id, sheet := range s.sheets {
		cat[id] = CatalogEntry{Images: sheet.Images}
	}
	return cat
}
