// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartotile/internal/cache"
	"github.com/tomtom215/cartotile/internal/fonts"
	"github.com/tomtom215/cartotile/internal/logging"
	"github.com/tomtom215/cartotile/internal/metrics"
	"github.com/tomtom215/cartotile/internal/middleware"
	"github.com/tomtom215/cartotile/internal/source"
	"github.com/tomtom215/cartotile/internal/sprites"
)

// Banner is the body of GET /.
const Banner = "Cartotile map tile server. Available sources are listed at /catalog\n"

// DefaultTileMaxAge is the Cache-Control max-age of tiles whose source
// does not choose one.
const DefaultTileMaxAge = time.Hour

// Refreshing is implemented by Refresher.
type Refreshing interface {
	Refresh(ctx context.Context) error
}

// Handler serves every route from the shared AppState.
type Handler struct {
	app       *AppState
	refresher Refreshing
	monitor   *middleware.LatencyMonitor
	started   time.Time
}

// NewHandler returns a Handler. monitor may be nil.
func NewHandler(app *AppState, refresher Refreshing, monitor *middleware.LatencyMonitor) *Handler {
	return &Handler{app: app, refresher: refresher, monitor: monitor, started: time.Now()}
}

// Index writes the banner.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, Banner)
}

// Health reads no state, so it answers even while a refresh holds every
// write lock.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.WriteString(w, "OK")
}

// Catalog writes the pre-encoded catalog of the current generation.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	doc := h.app.Catalog.Read()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc.Body)
}

// Refresh runs a hot reload. The refresh is detached from the request so
// a client disconnect cannot abort it halfway.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if err := h.refresher.Refresh(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Generation    uint64                  `json:"generation"`
	UptimeSeconds float64                 `json:"uptime_seconds"`
	Sources       int                     `json:"sources"`
	Sprites       int                     `json:"sprites"`
	Fonts         int                     `json:"fonts"`
	Cache         cache.Stats             `json:"cache"`
	Routes        []middleware.RouteStats `json:"routes,omitempty"`
}

// Status summarizes the current generation.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.app.State.Read()
	resp := StatusResponse{
		Generation:    st.Generation,
		UptimeSeconds: time.Since(h.started).Seconds(),
		Sources:       st.Tiles.Len(),
		Sprites:       st.Sprites.Len(),
		Fonts:         st.Fonts.Len(),
		Cache:         st.Cache.Stats(),
	}
	if h.monitor != nil {
		resp.Routes = h.monitor.Stats()
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

// TileJSON writes the metadata document of a source.
func (h *Handler) TileJSON(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "source_id")
	src, err := h.app.Sources.Read().Get(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	doc := BuildTileJSON(src.TileJSON(), id, requestScheme(r), requestHost(r), r.Header.Get(RewriteURLHeader))
	writeJSON(w, http.StatusOK, doc)
}

// Tile resolves and writes one tile.
func (h *Handler) Tile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "source_id")
	coord, err := parseCoord(chi.URLParam(r, "z"), chi.URLParam(r, "x"), chi.URLParam(r, "y"))
	if err != nil {
		metrics.RecordTile(id, "invalid", 0)
		respondError(w, r, err)
		return
	}

	src, data, err := h.getTile(r.Context(), id, coord, r.URL.Query())
	if err != nil && r.Context().Err() != nil {
		// The client is gone; nothing to write and nothing failed server side.
		metrics.RecordTile(id, "cancelled", 0)
		logging.Ctx(r.Context()).Debug().Err(err).Str("source", id).Msg("Tile request cancelled")
		return
	}
	if err != nil {
		metrics.RecordTile(id, tileOutcome(err), 0)
		respondError(w, r, err)
		return
	}
	if len(data) == 0 {
		metrics.RecordTile(id, "empty", 0)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	metrics.RecordTile(id, "ok", len(data))

	info := src.TileInfo()
	w.Header().Set("Content-Type", info.ContentType())
	if enc := info.ContentEncoding(); enc != "" {
		w.Header().Set("Content-Encoding", enc)
	}
	w.Header().Set("Cache-Control", cacheControl(src))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// getTile is the tile pipeline. The registry and cache handles come from a
// single State read so both belong to the same generation; no lock is held
// during the fetch.
func (h *Handler) getTile(ctx context.Context, id string, coord source.TileCoord, query url.Values) (source.Source, []byte, error) {
	st := h.app.State.Read()
	src, err := st.Tiles.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if !coord.Valid() {
		return nil, nil, &source.InvalidCoordinateError{Coord: coord}
	}
	if !src.TileJSON().Covers(coord) {
		return src, nil, nil
	}

	data, err := st.Cache.GetOrFetch(ctx, cache.Key(id, coord, query), func(ctx context.Context) ([]byte, error) {
		start := time.Now()
		data, err := src.GetTile(ctx, coord, query)
		metrics.TileFetchDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
		return data, err
	})
	if err != nil {
		return nil, nil, source.NewFetchError(id, coord, err)
	}
	return src, data, nil
}

func (h *Handler) spritesEnabled() bool { return h.app.Sprites.Read() != nil }

func (h *Handler) fontsEnabled() bool { return h.app.Fonts.Read() != nil }

// Sprite serves /sprite/{file}.
func (h *Handler) Sprite(w http.ResponseWriter, r *http.Request) {
	id, variant, ok := sprites.ParseVariant(chi.URLParam(r, "file"))
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %q", sprites.ErrSpriteNotFound, chi.URLParam(r, "file")))
		return
	}
	data, err := h.app.Sprites.Read().Get(id, variant)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", variant.ContentType())
	_, _ = w.Write(data)
}

// Font serves /font/{fontstack}/{range}.
func (h *Handler) Font(w http.ResponseWriter, r *http.Request) {
	stack, err := url.PathUnescape(chi.URLParam(r, "fontstack"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %q", fonts.ErrFontNotFound, chi.URLParam(r, "fontstack")))
		return
	}
	rng, err := fonts.ParseRange(chi.URLParam(r, "range"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	data, err := h.app.Fonts.Read().Get(stack, rng)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(data)
}

// parseCoord parses route parameters. y may carry a file extension.
func parseCoord(zs, xs, ys string) (source.TileCoord, error) {
	if i := strings.IndexByte(ys, '.'); i >= 0 {
		ys = ys[:i]
	}
	z, errZ := strconv.ParseUint(zs, 10, 8)
	x, errX := strconv.ParseUint(xs, 10, 32)
	y, errY := strconv.ParseUint(ys, 10, 32)
	if errZ != nil || errX != nil || errY != nil {
		return source.TileCoord{}, fmt.Errorf("%w: %s/%s/%s is not a tile address", source.ErrInvalidCoordinate, zs, xs, ys)
	}
	return source.TileCoord{Z: uint8(z), X: uint32(x), Y: uint32(y)}, nil
}

func cacheControl(src source.Source) string {
	maxAge := DefaultTileMaxAge
	if ma, ok := src.(source.MaxAger); ok && ma.MaxAge() > 0 {
		maxAge = ma.MaxAge()
	}
	return "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
}

func tileOutcome(err error) string {
	status, _, _ := classify(err)
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusServiceUnavailable:
		return "transient"
	default:
		return "failed"
	}
}
