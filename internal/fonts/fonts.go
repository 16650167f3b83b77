// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package fonts serves prebuilt SDF glyph ranges.
//
// Each font root holds one directory per font family, and each family
// directory holds {start}-{end}.pbf files covering 256 code points.
package fonts

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// ErrFontNotFound is returned when no font of a stack has a range.
var ErrFontNotFound = errors.New("font not found")

// ErrInvalidRange is returned for ranges that are not 256-aligned blocks.
var ErrInvalidRange = errors.New("invalid glyph range")

// maxCodePoint is the last code point of the basic multilingual plane.
const maxCodePoint = 65535

// Range is a block of 256 code points.
type Range struct {
	Start int
	End   int
}

func (r Range) String() string {
	return strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// ParseRange parses "{start}-{end}" with an optional ".pbf" suffix.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSuffix(s, ".pbf")
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	start, err1 := strconv.Atoi(a)
	end, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	r := Range{Start: start, End: end}
	if start < 0 || start%256 != 0 || end != start+255 || end > maxCodePoint {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return r, nil
}

// family is one font directory.
type family struct {
	dir    string
	ranges map[Range]bool
}

// CatalogEntry summarizes one font family.
type CatalogEntry struct {
	Ranges int `json:"ranges"`
}

// Catalog maps font family names to entries.
type Catalog map[string]CatalogEntry

// Sources is an immutable font registry.
type Sources struct {
	families map[string]*family
}

// New scans every root. A family present under two roots is an error.
func New(roots []string) (*Sources, error) {
	families := make(map[string]*family)
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("font root %s: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if _, dup := families[name]; dup {
				return nil, fmt.Errorf("duplicate font family %q", name)
			}
			f, err := scanFamily(filepath.Join(root, name))
			if err != nil {
				return nil, err
			}
			if len(f.ranges) > 0 {
				families[name] = f
			}
		}
	}
	return &Sources{families: families}, nil
}

func scanFamily(dir string) (*family, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("font family %s: %w", dir, err)
	}
	f := &family{dir: dir, ranges: make(map[Range]bool)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pbf") {
			continue
		}
		r, err := ParseRange(e.Name())
		if err != nil {
			continue
		}
		f.ranges[r] = true
	}
	return f, nil
}

// Get returns the glyphs of r from the first font of a comma-separated
// stack that has them.
func (s *Sources) Get(stack string, r Range) ([]byte, error) {
	if s != nil {
		for _, name := range strings.Split(stack, ",") {
			f, ok := s.families[strings.TrimSpace(name)]
			if !ok || !f.ranges[r] {
				continue
			}
			data, err := os.ReadFile(filepath.Join(f.dir, r.String()+".pbf"))
			if err != nil {
				return nil, fmt.Errorf("read glyphs %s %s: %w", name, r, err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrFontNotFound, stack)
}

// Len returns the number of families.
func (s *Sources) Len() int {
	if s == nil {
		return 0
	}
	return len(s.families)
}

// Families returns the family names in sorted order.
func (s *Sources) Families() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.families))
}

// Catalog lists every family.
func (s *Sources) Catalog() Catalog {
	cat := make(Catalog, s.Len())
	if s == nil {
		return cat
	}
	for name, f := range s.families {
		cat[name] = CatalogEntry{Ranges: len(f.ranges)}
	}
	return cat
}
