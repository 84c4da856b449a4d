package vatsim

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure returned by this package. The set is
// closed; switch on it exhaustively.
type ErrorKind int

const (
	// KindTransport means no HTTP response was received (connection, TLS,
	// DNS, timeout, cancellation, or a body that could not be read).
	KindTransport ErrorKind = iota + 1

	// KindInvalidStatusCode means the server answered outside 200-299.
	KindInvalidStatusCode

	// KindDecode means a 2xx body did not match the expected schema.
	KindDecode

	// KindNoURLAvailable means the status document listed no mirror for a
	// required feed.
	KindNoURLAvailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport failure"
	case KindInvalidStatusCode:
		return "invalid status code"
	case KindDecode:
		return "decode failure"
	case KindNoURLAvailable:
		return "no url available"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels for errors.Is. Every *Error matches exactly one of them.
var (
	ErrTransport         = errors.New("vatsim: transport failure")
	ErrInvalidStatusCode = errors.New("vatsim: invalid status code")
	ErrDecode            = errors.New("vatsim: decode failure")
	ErrNoURLAvailable    = errors.New("vatsim: no url available")
)

// FeedType names a mirrored feed published by the status document.
type FeedType string

const (
	FeedV3           FeedType = "v3"
	FeedTransceivers FeedType = "transceivers"
)

// Error is the failure type returned by every network operation.
type Error struct {
	Kind ErrorKind

	// URL is the request URL (empty for KindNoURLAvailable)
	URL string

	// StatusCode is set for KindInvalidStatusCode
	StatusCode int

	// Feed is set for KindNoURLAvailable
	Feed FeedType

	// Err is the underlying transport or decode error, if any
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidStatusCode:
		return fmt.Sprintf("vatsim: invalid HTTP status code %d from %s", e.StatusCode, e.URL)
	case KindNoURLAvailable:
		return fmt.Sprintf("vatsim: status page listed no %s url", e.Feed)
	case KindTransport:
		return fmt.Sprintf("vatsim: request %s: %v", e.URL, e.Err)
	case KindDecode:
		return fmt.Sprintf("vatsim: decode %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("vatsim: %s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindTransport:
		return target == ErrTransport
	case KindInvalidStatusCode:
		return target == ErrInvalidStatusCode
	case KindDecode:
		return target == ErrDecode
	case KindNoURLAvailable:
		return target == ErrNoURLAvailable
	}
	return false
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by an invalid-status error.
func StatusCode(err error) (int, bool) {
	if e, ok := AsError(err); ok && e.Kind == KindInvalidStatusCode {
		return e.StatusCode, true
	}
	return 0, false
}
