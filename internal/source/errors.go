// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrSourceNotFound is returned when no source is registered under an ID.
var ErrSourceNotFound = errors.New("source not found")

// ErrInvalidCoordinate is matched by InvalidCoordinateError.
var ErrInvalidCoordinate = errors.New("invalid tile coordinate")

// InvalidCoordinateError reports a coordinate outside [0, 2^z).
type InvalidCoordinateError struct {
	Coord TileCoord
}

func (e *InvalidCoordinateError) Error() string {
	if e.Coord.Z > MaxZoom {
		return fmt.Sprintf("invalid tile coordinate %s: zoom exceeds %d", e.Coord, MaxZoom)
	}
	return fmt.Sprintf("invalid tile coordinate %s: x and y must be below %d", e.Coord, uint32(1)<<e.Coord.Z)
}

// Is makes errors.Is(err, ErrInvalidCoordinate) match.
func (e *InvalidCoordinateError) Is(target error) bool {
	return target == ErrInvalidCoordinate
}

// FetchError wraps a failure returned by Source.GetTile.
type FetchError struct {
	SourceID  string
	Coord     TileCoord
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("fetch tile %s from %q (%s): %v", e.Coord, e.SourceID, kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable by the caller.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient, is a
// deadline, or is a network timeout.
func IsTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// NewFetchError wraps err for the given source and coordinate.
func NewFetchError(id string, coord TileCoord, err error) *FetchError {
	return &FetchError{SourceID: id, Coord: coord, Transient: IsTransient(err), Err: err}
}
