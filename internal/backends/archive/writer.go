// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package archive

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/cartotile/internal/source"
)

// Writer builds an archive. It batches writes and must be closed.
type Writer struct {
	db    *badger.DB
	batch *badger.WriteBatch
	count int
}

// Create opens (or creates) the archive at path for writing.
func Create(path string) (*Writer, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}
	return &Writer{db: db, batch: db.NewWriteBatch()}, nil
}

// PutTile stores data at coord.
func (w *Writer) PutTile(coord source.TileCoord, data []byte) error {
	if !coord.Valid() {
		return &source.InvalidCoordinateError{Coord: coord}
	}
	if err := w.batch.Set(TileKey(coord), data); err != nil {
		return fmt.Errorf("put tile %s: %w", coord, err)
	}
	w.count++
	return nil
}

// SetMeta stores one metadata field.
func (w *Writer) SetMeta(field, value string) error {
	return w.batch.Set([]byte(metaPrefix+field), []byte(value))
}

// Count returns the number of tiles written so far.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes pending writes and closes the archive.
func (w *Writer) Close() error {
	flushErr := w.batch.Flush()
	closeErr := w.db.Close()
	if flushErr != nil {
		return fmt.Errorf("flush archive: %w", flushErr)
	}
	return closeErr
}
