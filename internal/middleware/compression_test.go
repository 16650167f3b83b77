// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})
}

func TestCompress_GzipsJSON(t *testing.T) {
	body := `{"tiles":{` + strings.Repeat(`"a":1,`, 300) + `"b":2}}`
	handler := Compress(DefaultCompressMinSize)(jsonHandler(body))

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	plain, _ := io.ReadAll(zr)
	if string(plain) != body {
		t.Error("decompressed body does not match")
	}
}

func TestCompress_ZeroMinSize(t *testing.T) {
	handler := Compress(0)(jsonHandler(`{}`))

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("small body not compressed with zero min size")
	}
}

func TestCompress_Passthrough(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		ctype  string
	}{
		{"client without gzip", "", "application/json"},
		{"non json content", "gzip", "application/x-protobuf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Repeat("x", 4096)
			handler := Compress(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.ctype)
				_, _ = io.WriteString(w, body)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Header().Get("Content-Encoding") != "" {
				t.Errorf("Content-Encoding = %q, want none", rec.Header().Get("Content-Encoding"))
			}
			if rec.Body.String() != body {
				t.Error("body modified")
			}
		})
	}
}
