// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartotile/internal/logging"
)

func TestLatencyMonitor_WindowEviction(t *testing.T) {
	m := NewLatencyMonitor(3, 0)
	for i := 1; i <= 5; i++ {
		m.Record(RequestSample{Route: "/catalog", Method: "GET", Duration: time.Duration(i) * time.Millisecond})
	}

	stats := m.Stats()
	if len(stats) != 1 {
		t.Fatalf("len(stats) = %d, want 1", len(stats))
	}
	s := stats[0]
	if s.RequestCount != 3 {
		t.Errorf("RequestCount = %d, want 3 (window size)", s.RequestCount)
	}
	if s.MaxMS != 5 || s.P50MS != 4 || s.AvgMS != 4 {
		t.Errorf("stats = %+v, want max 5 p50 4 avg 4", s)
	}
}

func TestLatencyMonitor_OrdersByCount(t *testing.T) {
	m := NewLatencyMonitor(0, 0)
	m.Record(RequestSample{Route: "/catalog", Method: "GET"})
	for i := 0; i < 3; i++ {
		m.Record(RequestSample{Route: "/{source_id}/{z}/{x}/{y}", Method: "GET"})
	}

	stats := m.Stats()
	if len(stats) != 2 || stats[0].Route != "GET /{source_id}/{z}/{x}/{y}" {
		t.Errorf("stats order = %+v", stats)
	}
}

func TestLatencyMonitor_Middleware(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	m := NewLatencyMonitor(10, time.Nanosecond)
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/sprite/{file}", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sprite/a.png", nil))

	stats := m.Stats()
	if len(stats) != 1 || stats[0].Route != "GET /sprite/{file}" {
		t.Errorf("stats = %+v", stats)
	}
	if !strings.Contains(buf.String(), "Slow request detected") {
		t.Errorf("slow request not logged: %s", buf.String())
	}
}
