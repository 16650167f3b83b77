// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartotile/internal/fonts"
	"github.com/tomtom215/cartotile/internal/logging"
	"github.com/tomtom215/cartotile/internal/source"
	"github.com/tomtom215/cartotile/internal/sprites"
)

// BindError reports a listen address that could not be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Error codes of the JSON error envelope.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// internalErrorMessage is the only detail clients get for server faults.
const internalErrorMessage = "internal server error"

// RetryAfter is sent with 503 responses for transient tile failures.
const RetryAfter = 5

// APIError is the body of every error response.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// classify maps err to a status, a code and a client-safe message.
func classify(err error) (status int, code, message string) {
	var fe *source.FetchError
	switch {
	case errors.Is(err, source.ErrSourceNotFound),
		errors.Is(err, sprites.ErrSpriteNotFound),
		errors.Is(err, fonts.ErrFontNotFound):
		return http.StatusNotFound, ErrCodeNotFound, err.Error()
	case errors.Is(err, source.ErrInvalidCoordinate),
		errors.Is(err, fonts.ErrInvalidRange):
		return http.StatusBadRequest, ErrCodeBadRequest, err.Error()
	case errors.As(err, &fe) && fe.Transient:
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable, internalErrorMessage
	default:
		return http.StatusInternalServerError, ErrCodeInternalError, internalErrorMessage
	}
}

// respondError writes the error envelope. Client errors log at debug,
// server errors at error with full detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)

	if status >= http.StatusInternalServerError {
		logging.CtxErr(r.Context(), err).Int("status", status).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		logging.Ctx(r.Context()).Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request rejected")
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfter))
	}
	writeJSON(w, status, errorEnvelope{Error: APIError{
		Code:      code,
		Message:   message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logging.Err(err).Msg("Failed to encode JSON response")
		http.Error(w, internalErrorMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
