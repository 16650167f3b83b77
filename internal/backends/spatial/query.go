// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package spatial

import (
	"fmt"
	"strings"

	"github.com/tomtom215/cartotile/internal/source"
)

// Defaults for unset table settings.
const (
	DefaultGeometryColumn = "geom"
	DefaultSRID           = 4326
	DefaultExtent         = 4096
	DefaultBuffer         = 64
)

// Table describes the features rendered into a single MVT layer.
type Table struct {
	Name           string
	GeometryColumn string
	SRID           int
	Layer          string
	Properties     []string
	Extent         int
	Buffer         int
}

func (t Table) withDefaults() Table {
	if t.GeometryColumn == "" {
		t.GeometryColumn = DefaultGeometryColumn
	}
	if t.SRID == 0 {
		t.SRID = DefaultSRID
	}
	if t.Layer == "" {
		t.Layer = t.Name
	}
	if t.Extent == 0 {
		t.Extent = DefaultExtent
	}
	if t.Buffer == 0 {
		t.Buffer = DefaultBuffer
	}
	return t
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// geometryExpr projects the stored geometry to web mercator.
func (t Table) geometryExpr() string {
	col := quoteIdent(t.GeometryColumn)
	if t.SRID == 3857 {
		return col
	}
	return fmt.Sprintf("ST_Transform(%s, 'EPSG:%d', 'EPSG:3857', true)", col, t.SRID)
}

// Query returns the SQL that renders one tile. It takes the tile's web
// mercator envelope as four parameters: min x, min y, max x, max y.
func (t Table) Query() string {
	t = t.withDefaults()
	geom := t.geometryExpr()

	cols := make([]string, 0, len(t.Properties)+1)
	cols = append(cols, fmt.Sprintf("ST_AsMVTGeom(%s, ST_Extent(env.e), %d, %d, true) AS geom", geom, t.Extent, t.Buffer))
	for _, p := range t.Properties {
		cols = append(cols, quoteIdent(p))
	}

	var b strings.Builder
	b.WriteString("WITH env AS (SELECT ST_MakeEnvelope(?, ?, ?, ?) AS e),\n")
	b.WriteString("features AS (\n\tSELECT ")
	b.WriteString(strings.Join(cols, ",\n\t\t"))
	fmt.Fprintf(&b, "\n\tFROM %s, env\n\tWHERE ST_Intersects(%s, env.e)\n)\n", quoteIdent(t.Name), geom)
	fmt.Fprintf(&b, "SELECT ST_AsMVT(features, %s, %d, 'geom') FROM features WHERE geom IS NOT NULL",
		quoteLiteral(t.Layer), t.Extent)
	return b.String()
}

// Args returns the envelope parameters of Query for coord.
func Args(coord source.TileCoord) []any {
	b := source.TileBounds(coord)
	return []any{b.MinX, b.MinY, b.MaxX, b.MaxY}
}
