// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package source

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ReservedKeywords cannot be used as source IDs. Most of them are fixed
// routes; the rest are held back for future endpoints.
var ReservedKeywords = []string{
	"_", "catalog", "config", "font", "health", "help", "index", "manifest",
	"metrics", "refresh", "reload", "sprite", "status",
}

// ErrInvalidSourceID is wrapped by every ValidateID failure.
var ErrInvalidSourceID = errors.New("invalid source id")

// dotNumberSuffix matches IDs like "roads.1", reserved for layer addressing.
var dotNumberSuffix = regexp.MustCompile(`\.[0-9]+$`)

// IsReserved reports whether id is one of ReservedKeywords.
func IsReserved(id string) bool {
	return slices.Contains(ReservedKeywords, id)
}

// ValidateID checks that id can be used as a source ID.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidSourceID)
	case IsReserved(id):
		return fmt.Errorf("%w: %q is a reserved keyword", ErrInvalidSourceID, id)
	case dotNumberSuffix.MatchString(id):
		return fmt.Errorf("%w: %q ends in a reserved dot-number suffix", ErrInvalidSourceID, id)
	case strings.ContainsAny(id, "/?#% \t\r\n"):
		return fmt.Errorf("%w: %q contains a character not allowed in a path segment", ErrInvalidSourceID, id)
	}
	return nil
}
