package transport

import "fmt"

// ErrorKind is the closed enumeration of classified error shapes produced
// by the streaming transport (spec §3 / §4.C). Each concrete type
// implements errorKind so the set is closed to this package's declarations;
// callers use a type switch or errors.As to branch on kind.
type ErrorKind interface {
	error
	errorKind()
}

// HTTPError represents a non-2xx response from the chat service.
type HTTPError struct {
	Status     int
	RetryAfter int // seconds; -1 when absent
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d: %s", e.Status, e.Body)
}
func (*HTTPError) errorKind() {}

// StreamTransientError represents an overload/rate-limit/api-error event
// emitted mid-stream, or a stream that ended without a stop reason.
type StreamTransientError struct {
	Detail string
}

func (e *StreamTransientError) Error() string { return "stream transient: " + e.Detail }
func (*StreamTransientError) errorKind()       {}

// StreamParseError represents a malformed event payload or an
// invalid_request_error emitted mid-stream.
type StreamParseError struct {
	Detail string
}

func (e *StreamParseError) Error() string { return "stream parse: " + e.Detail }
func (*StreamParseError) errorKind()       {}

// TransportErrorClass distinguishes why a low-level network error occurred.
type TransportErrorClass string

const (
	TransportTimeout TransportErrorClass = "timeout"
	TransportConnect TransportErrorClass = "connect"
	TransportOther   TransportErrorClass = "other"
)

// TransportError wraps a low-level network error.
type TransportError struct {
	Class TransportErrorClass
	Inner error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport (%s): %v", e.Class, e.Inner) }
func (e *TransportError) Unwrap() error { return e.Inner }
func (*TransportError) errorKind()       {}

// EncodingError wraps malformed JSON encountered in a stream payload.
type EncodingError struct {
	Inner error
}

func (e *EncodingError) Error() string { return "encoding: " + e.Inner.Error() }
func (e *EncodingError) Unwrap() error { return e.Inner }
func (*EncodingError) errorKind()       {}
