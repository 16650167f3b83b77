// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package upstream proxies tiles from a remote XYZ tile server.
//
// Each source owns an HTTP client, an optional request rate limiter and a
// circuit breaker. Failures that a retry could fix (429, 5xx, timeouts, an
// open breaker) are reported as transient so the server answers 503 with
// Retry-After instead of 500.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cartotile/internal/logging"
	"github.com/tomtom215/cartotile/internal/metrics"
	"github.com/tomtom215/cartotile/internal/source"
)

// DefaultTimeout bounds a single upstream request when none is configured.
const DefaultTimeout = 15 * time.Second

// maxTileBytes caps the size of an upstream response body.
const maxTileBytes = 16 << 20

// Config describes an upstream tile server.
type Config struct {
	// URLTemplate contains {z}, {x} and {y} placeholders.
	URLTemplate string
	Info        source.TileInfo
	Meta        source.TileJSON
	MaxAge      time.Duration
	Timeout     time.Duration

	// RateLimit is the maximum requests per second; zero disables limiting.
	RateLimit float64
	Headers   map[string]string

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// StatusError is returned for unexpected upstream status codes.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// shared is the per-source state reused by clones.
type shared struct {
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// Source fetches tiles over HTTP.
type Source struct {
	id  string
	cfg Config
	s   *shared
}

// New validates cfg and builds the source.
func New(id string, cfg Config) (*Source, error) {
	u, err := url.Parse(cfg.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q: scheme must be http or https", cfg.URLTemplate)
	}
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(cfg.URLTemplate, p) {
			return nil, fmt.Errorf("upstream url %q: missing %s placeholder", cfg.URLTemplate, p)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Source{
		id:  id,
		cfg: cfg,
		s: &shared{
			client:  client,
			limiter: limiter,
			cb:      newBreaker("upstream-" + id),
		},
	}, nil
}

// newBreaker opens after 10 requests with at least 60% transient failures
// and probes again after 30 seconds.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).Msg("Opening upstream circuit")
				return true
			}
			return false
		},
		// Permanent errors (bad request, forbidden) say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || !source.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Upstream circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

func (s *Source) ID() string { return s.id }
func (s *Source) TileJSON() source.TileJSON { return s.cfg.Meta }
func (s *Source) TileInfo() source.TileInfo { return s.cfg.Info }
func (s *Source) MaxAge() time.Duration { return s.cfg.MaxAge }

// Clone shares the client, limiter and breaker with s.
func (s *Source) Clone() source.Source {
	c := *s
	return &c
}

// TileURL expands the template for coord and appends query.
func (s *Source) TileURL(coord source.TileCoord, query url.Values) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(int(coord.Z)),
		"{x}", strconv.FormatUint(uint64(coord.X), 10),
		"{y}", strconv.FormatUint(uint64(coord.Y), 10),
	)
	u := r.Replace(s.cfg.URLTemplate)
	if len(query) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + query.Encode()
}

// GetTile fetches the tile through the limiter and the breaker.
func (s *Source) GetTile(ctx context.Context, coord source.TileCoord, query url.Values) ([]byte, error) {
	if s.s.limiter != nil {
		if err := s.s.limiter.Wait(ctx); err != nil {
			return nil, source.Transient(fmt.Errorf("upstream rate limit: %w", err))
		}
	}

	name := "upstream-" + s.id
	data, err := s.s.cb.Execute(func() ([]byte, error) {
		return s.fetch(ctx, coord, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
			return nil, source.Transient(err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	return data, nil
}

func (s *Source) fetch(ctx context.Context, coord source.TileCoord, query url.Values) ([]byte, error) {
	tileURL := s.TileURL(coord, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	gz := s.cfg.Info.Encoding == source.EncodingGzip
	if gz {
		// Setting the header disables the transport's transparent decoding.
		req.Header.Set("Accept-Encoding", "gzip")
	}

	resp, err := s.s.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			err = source.Transient(err)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, source.Transient(&StatusError{StatusCode: resp.StatusCode, URL: tileURL})
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: tileURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, source.Transient(fmt.Errorf("read upstream body: %w", err))
	}
	if len(body) > maxTileBytes {
		return nil, fmt.Errorf("upstream tile exceeds %d bytes", maxTileBytes)
	}
	if len(body) == 0 {
		return nil, nil
	}
	if gz && !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return compress(body)
	}
	return body, nil
}

// compress gzips a body that the upstream sent uncompressed, so the
// payload always matches the advertised encoding.
func compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
