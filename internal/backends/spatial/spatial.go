// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package spatial renders vector tiles on demand from a DuckDB table using
// the spatial extension.
package spatial

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"github.com/tomtom215/cartotile/internal/logging"
	"github.com/tomtom215/cartotile/internal/source"
)

// Config describes a spatial source.
type Config struct {
	// Path is the DuckDB database file, opened read-only.
	Path   string
	Table  Table
	Info   source.TileInfo
	Meta   source.TileJSON
	MaxAge time.Duration
}

// Source renders tiles with ST_AsMVT.
type Source struct {
	id     string
	db     *sql.DB
	query  string
	info   source.TileInfo
	meta   source.TileJSON
	maxAge time.Duration
}

// Open opens the database, loads the spatial extension and checks that the
// table and its geometry column exist.
func Open(ctx context.Context, id string, cfg Config) (*Source, error) {
	table := cfg.Table.withDefaults()
	if table.Name == "" {
		return nil, fmt.Errorf("spatial source %q: table is required", id)
	}

	dsn := cfg.Path + "?access_mode=read_only&autoinstall_known_extensions=false&autoload_known_extensions=false"
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", cfg.Path, err)
	}

	if err := loadSpatial(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := checkTable(ctx, db, table); err != nil {
		_ = db.Close()
		return nil, err
	}

	info := cfg.Info
	if info.Format == "" {
		info.Format = source.FormatMVT
	}
	meta := cfg.Meta
	if len(meta.VectorLayers) == 0 {
		fields := make(map[string]string, len(table.Properties))
		for _, p := range table.Properties {
			fields[p] = ""
		}
		meta.VectorLayers = []source.VectorLayer{{ID: table.Layer, Fields: fields}}
	}

	return &Source{
		id:     id,
		db:     db,
		query:  table.Query(),
		info:   info,
		meta:   meta,
		maxAge: cfg.MaxAge,
	}, nil
}

// loadSpatial loads the extension, installing it first when it is not
// present locally.
func loadSpatial(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "LOAD spatial;"); err == nil {
		return nil
	}
	logging.Debug().Msg("spatial extension not loadable, installing")
	if _, err := db.ExecContext(ctx, "INSTALL spatial;"); err != nil {
		return fmt.Errorf("install spatial extension: %w", err)
	}
	if _, err := db.ExecContext(ctx, "LOAD spatial;"); err != nil {
		return fmt.Errorf("load spatial extension: %w", err)
	}
	return nil
}

func checkTable(ctx context.Context, db *sql.DB, t Table) error {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_name = ? AND column_name = ?",
		t.Name, t.GeometryColumn).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect table %s: %w", t.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("table %s has no column %s", t.Name, t.GeometryColumn)
	}
	return nil
}

func (s *Source) ID() string { return s.id }
func (s *Source) TileJSON() source.TileJSON { return s.meta }
func (s *Source) TileInfo() source.TileInfo { return s.info }
func (s *Source) MaxAge() time.Duration { return s.maxAge }

// GetTile renders the tile. A tile without features is empty.
func (s *Source) GetTile(ctx context.Context, coord source.TileCoord, _ url.Values) ([]byte, error) {
	var mvt []byte
	if err := s.db.QueryRowContext(ctx, s.query, Args(coord)...).Scan(&mvt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("render tile %s: %w", coord, err)
	}
	if len(mvt) == 0 {
		return nil, nil
	}
	return mvt, nil
}

// Clone shares the connection pool.
func (s *Source) Clone() source.Source {
	c := *s
	return &c
}

// Close closes the connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}
