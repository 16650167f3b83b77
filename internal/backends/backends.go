// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package backends turns source configuration into live tile sources.
package backends

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/tomtom215/cartotile/internal/backends/archive"
	"github.com/tomtom215/cartotile/internal/backends/directory"
	"github.com/tomtom215/cartotile/internal/backends/spatial"
	"github.com/tomtom215/cartotile/internal/backends/upstream"
	"github.com/tomtom215/cartotile/internal/config"
	"github.com/tomtom215/cartotile/internal/source"
)

// Open builds the source described by sc. The returned source may hold
// resources; callers close it through source.TileSources.Close.
func Open(ctx context.Context, id string, sc config.SourceConfig) (source.Source, error) {
	info, err := tileInfo(sc)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", id, err)
	}
	meta := tileJSON(id, sc)

	var src source.Source
	switch sc.Kind {
	case config.KindDirectory:
		src, err = directory.New(id, directory.Config{Root: sc.Path, Info: info, Meta: meta, MaxAge: sc.MaxAge})
	case config.KindArchive:
		src, err = archive.Open(id, archive.Config{Path: sc.Path, Info: info, Meta: meta, MaxAge: sc.MaxAge})
	case config.KindUpstream:
		src, err = upstream.New(id, upstream.Config{
			URLTemplate: sc.URL,
			Info:        info,
			Meta:        meta,
			MaxAge:      sc.MaxAge,
			Timeout:     sc.Timeout,
			RateLimit:   sc.RateLimit,
			Headers:     sc.Headers,
		})
	case config.KindSpatial:
		src, err = spatial.Open(ctx, id, spatial.Config{
			Path: sc.Path,
			Table: spatial.Table{
				Name:           sc.Table,
				GeometryColumn: sc.GeometryColumn,
				SRID:           sc.SRID,
				Layer:          sc.Layer,
				Properties:     sc.Properties,
				Extent:         sc.Extent,
				Buffer:         sc.Buffer,
			},
			Info:   info,
			Meta:   meta,
			MaxAge: sc.MaxAge,
		})
	default:
		return nil, fmt.Errorf("source %q: unknown kind %q", id, sc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", id, err)
	}
	return src, nil
}

// tileInfo resolves format and encoding. Without a configured format,
// upstream sources use the template's extension and directories default
// to vector tiles. Archives keep the format stored in their metadata.
func tileInfo(sc config.SourceConfig) (source.TileInfo, error) {
	var info source.TileInfo
	switch {
	case sc.Format != "":
		f, err := source.ParseFormat(sc.Format)
		if err != nil {
			return info, err
		}
		info.Format = f
	case sc.Kind == config.KindUpstream:
		info.Format = source.FormatMVT
		if u, err := url.Parse(sc.URL); err == nil {
			if f, err := source.ParseFormat(path.Ext(u.Path)); err == nil {
				info.Format = f
			}
		}
	case sc.Kind == config.KindDirectory:
		info.Format = source.FormatMVT
	}
	enc, err := source.ParseEncoding(sc.Encoding)
	if err != nil {
		return info, err
	}
	info.Encoding = enc
	return info, nil
}

// tileJSON builds the static metadata. Archive sources fill unset fields
// from their stored metadata; everything else defaults the name to id.
func tileJSON(id string, sc config.SourceConfig) source.TileJSON {
	tj := source.TileJSON{
		TileJSON:    source.TileJSONVersion,
		Name:        sc.Name,
		Description: sc.Description,
		Attribution: sc.Attribution,
	}
	if tj.Name == "" && sc.Kind != config.KindArchive {
		tj.Name = id
	}
	if sc.MinZoom != nil {
		tj.MinZoom = source.Zoom(uint8(*sc.MinZoom))
	}
	if sc.MaxZoom != nil {
		tj.MaxZoom = source.Zoom(uint8(*sc.MaxZoom))
	}
	if len(sc.Bounds) == 4 {
		b, _ := source.TileJSON{Bounds: sc.Bounds}.Bound()
		tj.SetBound(b)
	}
	return tj
}
