package aiproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error represents a chat proxy API error.
type Error struct {
	// HTTPStatus is the HTTP status code of the failed request.
	HTTPStatus int `json:"-"`

	// Code is the machine-readable error code, when the proxy provided
	// one.
	Code string `json:"code,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("aiproxy: %s (code=%s, http=%d)", e.Message, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("aiproxy: %s (http=%d)", e.Message, e.HTTPStatus)
}

// IsAuth returns true if the request was rejected for authentication or
// authorization reasons.
func (e *Error) IsAuth() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// IsRateLimit returns true if the request was rate limited.
func (e *Error) IsRateLimit() bool {
	return e.HTTPStatus == http.StatusTooManyRequests
}

// IsServerError returns true if the proxy failed server-side.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= 500
}

// Retryable returns true if the request can be retried.
func (e *Error) Retryable() bool {
	return e.IsRateLimit() || e.IsServerError()
}

// AsError extracts *Error from an error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// parseError builds an *Error from a non-2xx response body. The proxy
// wraps errors as {"error":{"code":...,"message":...}}; anything else is
// carried verbatim.
func parseError(body []byte, httpStatus int) *Error {
	var wrapped struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		wrapped.Error.HTTPStatus = httpStatus
		return wrapped.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(httpStatus)
	}
	return &Error{
		HTTPStatus: httpStatus,
		Message:    msg,
	}
}
