// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package config

import "fmt"

// Stages reported in Error.Op.
const (
	OpLoad     = "load"
	OpMerge    = "merge"
	OpFinalize = "finalize"
	OpResolve  = "resolve"
)

// Error is a configuration failure at start-up or during a refresh.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
