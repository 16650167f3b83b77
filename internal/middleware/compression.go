// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// DefaultCompressMinSize is the smallest body worth compressing.
const DefaultCompressMinSize = 1024

// Compress gzips JSON responses of at least minSize bytes for clients that
// accept it. Tile routes do not use it: tiles are served in the encoding
// their source stores.
func Compress(minSize int) func(http.Handler) http.Handler {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(minSize),
		gzhttp.ContentTypes([]string{"application/json"}),
	)
	if err != nil {
		// Only reachable with invalid static options.
		panic(err)
	}
	return func(next http.Handler) http.Handler {
		return wrapper(next)
	}
}
