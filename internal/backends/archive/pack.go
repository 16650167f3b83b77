// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/tomtom215/cartotile/internal/source"
)

// PackOptions are the metadata stored alongside packed tiles.
type PackOptions struct {
	Name        string
	Description string
	Attribution string
	Encoding    source.Encoding
}

// PackResult summarizes a Pack run.
type PackResult struct {
	Tiles   int
	Format  source.Format
	MinZoom uint8
	MaxZoom uint8
	Bounds  orb.Bound
}

// Pack copies a {z}/{x}/{y}.{ext} directory tree into w and stores the
// format, zoom range and bounds it finds. Files outside that layout are
// skipped. Every tile must share one extension.
func Pack(ctx context.Context, dir string, w *Writer, opts PackOptions) (PackResult, error) {
	var (
		res   PackResult
		ext   string
		bound orb.Bound
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		coord, fileExt, ok := parseTilePath(rel)
		if !ok {
			return nil
		}
		if ext == "" {
			ext = fileExt
		} else if fileExt != ext {
			return fmt.Errorf("mixed tile extensions %q and %q at %s", ext, fileExt, rel)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := w.PutTile(coord, data); err != nil {
			return err
		}

		tb := source.LonLatBounds(coord)
		if res.Tiles == 0 {
			res.MinZoom, res.MaxZoom, bound = coord.Z, coord.Z, tb
		} else {
			res.MinZoom = min(res.MinZoom, coord.Z)
			res.MaxZoom = max(res.MaxZoom, coord.Z)
			bound = bound.Union(tb)
		}
		res.Tiles++
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("pack %s: %w", dir, err)
	}
	if res.Tiles == 0 {
		return res, fmt.Errorf("pack %s: no tiles found", dir)
	}

	format, err := source.ParseFormat(ext)
	if err != nil {
		return res, fmt.Errorf("pack %s: %w", dir, err)
	}
	res.Format = format
	res.Bounds = bound

	meta := map[string]string{
		MetaName:        opts.Name,
		MetaDescription: opts.Description,
		MetaAttribution: opts.Attribution,
		MetaFormat:      string(format),
		MetaEncoding:    string(opts.Encoding),
		MetaMinZoom:     strconv.Itoa(int(res.MinZoom)),
		MetaMaxZoom:     strconv.Itoa(int(res.MaxZoom)),
		MetaBounds: strings.Join([]string{
			formatCoord(bound.Min.Lon()), formatCoord(bound.Min.Lat()),
			formatCoord(bound.Max.Lon()), formatCoord(bound.Max.Lat()),
		}, ","),
	}
	for field, value := range meta {
		if value == "" {
			continue
		}
		if err := w.SetMeta(field, value); err != nil {
			return res, fmt.Errorf("pack %s: %w", dir, err)
		}
	}
	return res, nil
}

// parseTilePath splits "z/x/y.ext" into a coordinate and extension.
func parseTilePath(rel string) (source.TileCoord, string, bool) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return source.TileCoord{}, "", false
	}
	yName, ext, found := strings.Cut(parts[2], ".")
	if !found || ext == "" {
		return source.TileCoord{}, "", false
	}
	z, errZ := strconv.ParseUint(parts[0], 10, 8)
	x, errX := strconv.ParseUint(parts[1], 10, 32)
	y, errY := strconv.ParseUint(yName, 10, 32)
	if errZ != nil || errX != nil || errY != nil {
		return source.TileCoord{}, "", false
	}
	coord := source.TileCoord{Z: uint8(z), X: uint32(x), Y: uint32(y)}
	if !coord.Valid() {
		return source.TileCoord{}, "", false
	}
	return coord, ext, true
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
