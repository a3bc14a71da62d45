// Package netatmo provides an HTTP client for the Netatmo Connect API with
// retry, error classification, and the home/schedule records the CLI uses.
package netatmo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for response classification.
// Use errors.Is(err, netatmo.ErrUnauthorized) to check.
var (
	ErrBadRequest   = errors.New("netatmo: bad request")
	ErrUnauthorized = errors.New("netatmo: unauthorized")
	ErrForbidden    = errors.New("netatmo: forbidden")
	ErrNotFound     = errors.New("netatmo: not found")
	ErrThrottled    = errors.New("netatmo: throttled")
	ErrServerError  = errors.New("netatmo: server error")
	ErrUnexpected   = errors.New("netatmo: unexpected response")
)

// Netatmo API error codes that mean the access token itself is the problem.
const (
	codeAccessTokenMissing = 1
	codeInvalidAccessToken = 2
	codeAccessTokenExpired = 3
)

// APIError wraps a sentinel error with the HTTP status and the error object
// from the response body.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("netatmo: HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}

	return fmt.Sprintf("netatmo: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorBody is the error envelope: {"error":{"code":2,"message":"..."}}.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAPIError builds an APIError from a non-2xx response body.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: string(body)}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		apiErr.Code = eb.Error.Code
		apiErr.Message = eb.Error.Message
	}

	apiErr.Err = classify(status, apiErr.Code)

	return apiErr
}

// classify maps a status and API error code to a sentinel. Token errors are
// reported as 403 by the API but classified as unauthorized.
func classify(status, code int) error {
	switch code {
	case codeAccessTokenMissing, codeInvalidAccessToken, codeAccessTokenExpired:
		return ErrUnauthorized
	}

	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if status >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpected
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
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
		return false
	}
}
