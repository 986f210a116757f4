package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the stable kind string surfaced to clients
type ErrorKind string

const (
	KindNotConfigured             ErrorKind = "NotConfigured"
	KindUpstreamUnavailable       ErrorKind = "UpstreamUnavailable"
	KindMalformedUpstreamResponse ErrorKind = "MalformedUpstreamResponse"
	KindRefinementDegraded        ErrorKind = "RefinementDegraded"
	KindInvalidRequest            ErrorKind = "InvalidRequest"
)

var (
	// ErrNotConfigured is returned when provider credentials are missing
	ErrNotConfigured = &Error{Kind: KindNotConfigured}

	// ErrUpstreamUnavailable is returned when the provider failed after its retry
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}

	// ErrMalformedUpstreamResponse is returned when the provider payload has no usable records
	ErrMalformedUpstreamResponse = &Error{Kind: KindMalformedUpstreamResponse}

	// ErrRefinementDegraded marks a refinement pass that fell back to the input
	ErrRefinementDegraded = &Error{Kind: KindRefinementDegraded}

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)

// Error is a structured pipeline error. Two errors match with errors.Is when
// their kinds are equal.
type Error struct {
	Kind    ErrorKind
	Message string
	Mode    SearchMode
	Elapsed time.Duration
	Timeout bool
	Err     error
}

// NewError creates an error of the given kind
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Mode != "" {
		msg = fmt.Sprintf("%s (mode=%s, elapsed=%s)", msg, e.Mode, e.Elapsed.Round(time.Millisecond))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can compare against the Err* sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind of a pipeline error, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
