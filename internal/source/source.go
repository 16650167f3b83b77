// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MaxZoom is the deepest zoom level accepted by the tile pipeline.
const MaxZoom = 30

// TileCoord is an XYZ tile address.
type TileCoord struct {
	Z uint8
	X uint32
	Y uint32
}

// Valid reports whether X and Y fall inside [0, 2^Z).
func (c TileCoord) Valid() bool {
	if c.Z > MaxZoom {
		return false
	}
	n := uint32(1) << c.Z
	return c.X < n && c.Y < n
}

// String returns the coordinate as "z/x/y".
func (c TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Format is the payload format of the tiles produced by a source.
type Format string

// Supported tile formats.
const (
	FormatMVT  Format = "mvt"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatJSON Format = "json"
)

// ParseFormat maps a configured format or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "mvt", "pbf":
		return FormatMVT, nil
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	case "json", "geojson":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported tile format %q", s)
	}
}

// ContentType returns the HTTP media type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMVT:
		return "application/x-protobuf"
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	case FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the conventional file extension without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMVT:
		return "pbf"
	case FormatJPEG:
		return "jpg"
	case "":
		return "bin"
	default:
		return string(f)
	}
}

// Encoding is the transfer encoding a source stores its tiles in.
type Encoding string

// Known encodings. EncodingIdentity means uncompressed.
const (
	EncodingIdentity Encoding = ""
	EncodingGzip     Encoding = "gzip"
)

// ParseEncoding accepts "", "identity", "none" and "gzip".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "", "identity", "none":
		return EncodingIdentity, nil
	case "gzip":
		return EncodingGzip, nil
	default:
		return "", fmt.Errorf("unsupported tile encoding %q", s)
	}
}

// TileInfo describes what a source's GetTile returns.
type TileInfo struct {
	Format   Format
	Encoding Encoding
}

// ContentType is the Content-Type header value for tiles of this source.
func (i TileInfo) ContentType() string {
	return i.Format.ContentType()
}

// ContentEncoding is the Content-Encoding header value, or "" when the
// payload is stored uncompressed.
func (i TileInfo) ContentEncoding() string {
	return string(i.Encoding)
}

// Source is a named provider of tiles.
//
// Implementations must be safe for concurrent use. Clone must be cheap:
// clones may share read-only handles with the original.
type Source interface {
	// ID returns the unique source identifier.
	ID() string

	// TileJSON returns the descriptive metadata of the source. The Tiles
	// field is filled in per request by the server.
	TileJSON() TileJSON

	// TileInfo reports the format and encoding of returned tiles.
	TileInfo() TileInfo

	// GetTile returns the tile bytes at coord. A nil slice with a nil error
	// means the source has no data for that tile. Errors that are worth
	// retrying should be wrapped with Transient.
	GetTile(ctx context.Context, coord TileCoord, query url.Values) ([]byte, error)

	// Clone returns a behaviorally equivalent copy.
	Clone() Source
}

// MaxAger is implemented by sources that choose the Cache-Control max-age
// of their tiles. Zero means the server default.
type MaxAger interface {
	MaxAge() time.Duration
}
