// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/cartotile/internal/source"
)

func writeTile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestSource_GetTile(t *testing.T) {
	root := t.TempDir()
	writeTile(t, root, "3/4/2.pbf", []byte("mvt"))

	src, err := New("roads", Config{Root: root, Info: source.TileInfo{Format: source.FormatMVT}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	data, err := src.GetTile(ctx, source.TileCoord{Z: 3, X: 4, Y: 2}, nil)
	if err != nil || string(data) != "mvt" {
		t.Errorf("GetTile(3/4/2) = %q, %v", data, err)
	}

	data, err = src.GetTile(ctx, source.TileCoord{Z: 3, X: 4, Y: 3}, nil)
	if err != nil || data != nil {
		t.Errorf("missing tile = %q, %v; want empty", data, err)
	}
}

func TestSource_GzipExtension(t *testing.T) {
	root := t.TempDir()
	writeTile(t, root, "0/0/0.pbf.gz", []byte{0x1f, 0x8b})

	src, err := New("roads", Config{
		Root: root,
		Info: source.TileInfo{Format: source.FormatMVT, Encoding: source.EncodingGzip},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := src.GetTile(context.Background(), source.TileCoord{}, nil)
	if err != nil || len(data) != 2 {
		t.Errorf("GetTile = %v, %v", data, err)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New("x", Config{Root: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("New should fail for a missing directory")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New("x", Config{Root: file}); err == nil {
		t.Error("New should fail for a regular file")
	}
}

func TestSource_Clone(t *testing.T) {
	src, err := New("roads", Config{Root: t.TempDir(), Info: source.TileInfo{Format: source.FormatPNG}})
	if err != nil {
		t.Fatal(err)
	}
	c := src.Clone()
	if c.ID() != "roads" || c.TileInfo() != src.TileInfo() {
		t.Errorf("clone = %v, %v", c.ID(), c.TileInfo())
	}
}
