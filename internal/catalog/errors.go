package catalog

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a catalog fetch failure.
type ErrorKind string

const (
	// KindNotFound means the project or version does not exist (HTTP 404).
	KindNotFound ErrorKind = "not_found"
	// KindRateLimited means the API rejected the request for rate limiting
	// (HTTP 429).
	KindRateLimited ErrorKind = "rate_limited"
	// KindServerError covers any other non-200 response.
	KindServerError ErrorKind = "server_error"
	// KindTransport covers network and decode failures.
	KindTransport ErrorKind = "transport"
)

// FetchError is a typed catalog API failure.
type FetchError struct {
	Kind   ErrorKind
	Status int   // HTTP status, 0 for transport errors
	Err    error // underlying error, may be nil
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog fetch (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("catalog fetch (%s): status %d", e.Kind, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a catalog 404.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindNotFound
}

// statusError builds a FetchError from a non-200 HTTP status.
func statusError(status int) *FetchError {
	kind := KindServerError
	switch status {
	case 404:
		kind = KindNotFound
	case 429:
		kind = KindRateLimited
	}
	return &FetchError{Kind: kind, Status: status}
}

// transportError wraps a network or decode failure.
func transportError(err error) *FetchError {
	return &FetchError{Kind: KindTransport, Err: err}
}
