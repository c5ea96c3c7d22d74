// Package classify turns a transport.ErrorKind into a retry/no-retry
// decision and drives the bounded retry schedule around one call.
package classify

import (
	"net/http"

	"github.com/opencoreai/turnengine/internal/transport"
)

// ErrorClass is the closed two-way split spec §4.C classifies every
// ErrorKind into.
type ErrorClass string

const (
	Transient ErrorClass = "transient"
	Permanent ErrorClass = "permanent"
)

// Classify maps a transport.ErrorKind into Transient or Permanent per
// spec §4.C. A nil error, or an error that isn't one of the transport
// package's classified kinds, is treated as Permanent — unclassified
// failures never retry silently.
func Classify(err error) ErrorClass {
	if err == nil {
		return Permanent
	}
	switch e := err.(type) {
	case *transport.HTTPError:
		return classifyHTTPStatus(e.Status)
	case *transport.StreamTransientError:
		return Transient
	case *transport.StreamParseError:
		return Permanent
	case *transport.TransportError:
		switch e.Class {
		case transport.TransportTimeout, transport.TransportConnect:
			return Transient
		default:
			return Permanent
		}
	case *transport.EncodingError:
		return Permanent
	default:
		return Permanent
	}
}

// classifyHTTPStatus implements spec §4.C's status table: 429, 503, 529,
// and any 5xx are transient; every other 4xx is permanent.
func classifyHTTPStatus(status int) ErrorClass {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, 529:
		return Transient
	}
	if status >= 500 {
		return Transient
	}
	return Permanent
}
