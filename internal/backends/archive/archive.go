// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package archive serves tiles from a badger key-value archive.
//
// Layout:
//
//	t<z:1><x:4><y:4>  tile payload (big-endian coordinates)
//	m/<field>         metadata string: name, description, attribution,
//	                  format, encoding, minzoom, maxzoom, bounds
//
// Archives are built with Writer (or the "pack" command) and opened
// read-only by Open, so several server generations may share one archive
// directory during a refresh.
package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/cartotile/internal/source"
)

const (
	tilePrefix = 't'
	metaPrefix = "m/"
)

// Metadata fields understood by Open.
const (
	MetaName        = "name"
	MetaDescription = "description"
	MetaAttribution = "attribution"
	MetaFormat      = "format"
	MetaEncoding    = "encoding"
	MetaMinZoom     = "minzoom"
	MetaMaxZoom     = "maxzoom"
	MetaBounds      = "bounds"
)

// TileKey returns the badger key of coord.
func TileKey(coord source.TileCoord) []byte {
	key := make([]byte, 10)
	key[0] = tilePrefix
	key[1] = coord.Z
	binary.BigEndian.PutUint32(key[2:6], coord.X)
	binary.BigEndian.PutUint32(key[6:10], coord.Y)
	return key
}

// Config overrides archive metadata. Zero fields keep the stored values.
type Config struct {
	Path   string
	Info   source.TileInfo
	Meta   source.TileJSON
	MaxAge time.Duration
}

// handle is the badger DB shared by a Source and its clones.
type handle struct {
	db *badger.DB
}

// Source serves tiles from an open archive.
type Source struct {
	id     string
	h      *handle
	info   source.TileInfo
	meta   source.TileJSON
	maxAge time.Duration
}

// Open opens the archive at cfg.Path read-only and merges its metadata with
// cfg.
func Open(id string, cfg Config) (*Source, error) {
	opts := badger.DefaultOptions(cfg.Path).WithReadOnly(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", cfg.Path, err)
	}

	stored, err := readMeta(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	info, meta, err := merge(id, stored, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive %s: %w", cfg.Path, err)
	}

	return &Source{id: id, h: &handle{db: db}, info: info, meta: meta, maxAge: cfg.MaxAge}, nil
}

func readMeta(db *badger.DB) (map[string]string, error) {
	meta := make(map[string]string)
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			meta[strings.TrimPrefix(string(item.Key()), metaPrefix)] = string(val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read archive metadata: %w", err)
	}
	return meta, nil
}

// merge combines stored metadata with configured overrides; configuration
// wins.
func merge(id string, stored map[string]string, cfg Config) (source.TileInfo, source.TileJSON, error) {
	info := cfg.Info
	if info.Format == "" {
		f, err := source.ParseFormat(stored[MetaFormat])
		if err != nil {
			return info, source.TileJSON{}, fmt.Errorf("format not configured and not stored: %w", err)
		}
		info.Format = f
	}
	if info.Encoding == source.EncodingIdentity && stored[MetaEncoding] != "" {
		e, err := source.ParseEncoding(stored[MetaEncoding])
		if err != nil {
			return info, source.TileJSON{}, err
		}
		info.Encoding = e
	}

	meta := cfg.Meta
	if meta.TileJSON == "" {
		meta.TileJSON = source.TileJSONVersion
	}
	if meta.Name == "" || meta.Name == id {
		if n := stored[MetaName]; n != "" {
			meta.Name = n
		}
	}
	if meta.Description == "" {
		meta.Description = stored[MetaDescription]
	}
	if meta.Attribution == "" {
		meta.Attribution = stored[MetaAttribution]
	}
	if meta.MinZoom == nil {
		meta.MinZoom = parseZoom(stored[MetaMinZoom])
	}
	if meta.MaxZoom == nil {
		meta.MaxZoom = parseZoom(stored[MetaMaxZoom])
	}
	if len(meta.Bounds) == 0 {
		if b := parseBounds(stored[MetaBounds]); b != nil {
			meta.Bounds = b
		}
	}
	return info, meta, nil
}

func parseZoom(s string) *uint8 {
	z, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil || z > source.MaxZoom {
		return nil
	}
	return source.Zoom(uint8(z))
}

func parseBounds(s string) []float64 {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil
	}
	out := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil
		}
		out[i] = v
	}
	return out
}

func (s *Source) ID() string { return s.id }
func (s *Source) TileJSON() source.TileJSON { return s.meta }
func (s *Source) TileInfo() source.TileInfo { return s.info }
func (s *Source) MaxAge() time.Duration { return s.maxAge }

// GetTile looks the tile up by key. Missing keys are empty tiles.
func (s *Source) GetTile(ctx context.Context, coord source.TileCoord, _ url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.h.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(TileKey(coord))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, nil
	case errors.Is(err, badger.ErrDBClosed):
		// The generation holding this source was retired mid-request.
		return nil, source.Transient(err)
	default:
		return nil, err
	}
}

// Clone shares the underlying database handle.
func (s *Source) Clone() source.Source {
	c := *s
	return &c
}

// Close closes the archive. Clones become unusable.
func (s *Source) Close() error {
	return s.h.db.Close()
}
