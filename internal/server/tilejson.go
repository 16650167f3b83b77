// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tomtom215/cartotile/internal/source"
)

// RewriteURLHeader is set by reverse proxies that rewrite the public path.
const RewriteURLHeader = "x-rewrite-url"

// TileURLPath returns the path segment of the tile URL template. Without
// a rewrite hint it is the source ID. With one, the last dot-delimited
// segment is dropped and then the first character (a whole rune).
func TileURLPath(id, rewrite string) string {
	if rewrite == "" {
		return id
	}
	path := rewrite
	if i := strings.LastIndex(path, "."); i >= 0 {
		path = path[:i]
	}
	if path != "" {
		_, size := utf8.DecodeRuneInString(path)
		path = path[size:]
	}
	return path
}

// BuildTileJSON returns the metadata document for a source as seen by a
// client that reached the server at scheme://host.
func BuildTileJSON(meta source.TileJSON, id, scheme, host, rewrite string) source.TileJSON {
	doc := meta
	if doc.TileJSON == "" {
		doc.TileJSON = source.TileJSONVersion
	}
	if doc.Name == "" {
		doc.Name = id
	}
	doc.Scheme = "tms"
	doc.Tiles = []string{scheme + "://" + host + "/" + TileURLPath(id, rewrite) + "/{z}/{x}/{y}.pbf"}
	return doc
}

// requestScheme honours X-Forwarded-Proto.
func requestScheme(r *http.Request) string {
	if p := firstValue(r.Header.Get("X-Forwarded-Proto")); p != "" {
		return strings.ToLower(p)
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// requestHost honours X-Forwarded-Host.
func requestHost(r *http.Request) string {
	if h := firstValue(r.Header.Get("X-Forwarded-Host")); h != "" {
		return h
	}
	return r.Host
}

// firstValue returns the first entry of a comma-separated header.
func firstValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
