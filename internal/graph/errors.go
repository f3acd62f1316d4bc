// Package graph provides an HTTP client for a Microsoft-Graph-style file API
// with automatic retry, error classification, and the drive, content, and
// workbook-session operations the sync layer needs.
package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, graph.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("graph: bad request")
	ErrUnauthorized = errors.New("graph: unauthorized")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNotFound     = errors.New("graph: not found")
	ErrConflict     = errors.New("graph: conflict")
	ErrThrottled    = errors.New("graph: throttled")
	ErrLocked       = errors.New("graph: resource locked")
	ErrServerError  = errors.New("graph: server error")
)

// tokenError marks a failure to obtain a bearer token before a request was
// sent. It is never retried: replaying the request would only replay the
// same rejected credential exchange. The underlying cause (e.g.
// oauth.ErrAuth) stays inspectable through Unwrap.
type tokenError struct {
	err error
}

func (e *tokenError) Error() string {
	return "graph: obtaining token: " + e.err.Error()
}

func (e *tokenError) Unwrap() error {
	return e.err
}

// APIError wraps a sentinel error with HTTP status code, request ID,
// and the API error message body for debugging.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("graph: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	case http.StatusLocked:
		return ErrLocked
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried
// at the transport layer. 423 Locked is deliberately absent: the rewrite
// strategy owns lock retries with its own fixed-delay budget.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		// 509 Bandwidth Limit Exceeded (SharePoint).
		const statusBandwidthExceeded = 509
		return code == statusBandwidthExceeded
	}
}
