package higress

import (
	"errors"
	"fmt"
)

// ErrorKind classifies downstream console failures into the small set the
// dispatcher reports to callers.
type ErrorKind string

const (
	// KindNotFound means the addressed resource does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindConflict means the resource already exists or the update collided.
	KindConflict ErrorKind = "conflict"
	// KindUnauthorized means the session cookie or credentials were rejected.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindTransient means the call failed in a way that is safe to retry.
	KindTransient ErrorKind = "transient"
	// KindUnknown covers everything else the console returned.
	KindUnknown ErrorKind = "unknown"
)

// APIError is a normalized downstream console failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("higress api error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("higress api error (%s): %s", e.Kind, e.Message)
}

// Retryable reports whether the caller may safely retry the request.
func (e *APIError) Retryable() bool {
	return e.Kind == KindTransient
}

// KindOf extracts the normalized kind from an error chain; non-API errors
// report KindUnknown.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 404:
		return KindNotFound
	case status == 409:
		return KindConflict
	case status == 401 || status == 403:
		return KindUnauthorized
	case status == 429 || status >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}
