package agronomy

import (
	"errors"
)

// Error kinds surfaced by the AI adapters.
var (
	// ErrServiceUnavailable covers transport, auth and service-side failures.
	ErrServiceUnavailable = errors.New("ai service unavailable")

	// ErrMalformedResponse is returned when a reply cannot be parsed into the expected shape.
	ErrMalformedResponse = errors.New("malformed ai response")

	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("ai call timed out")

	// ErrInvalidInput is returned for requests rejected before any call is made.
	ErrInvalidInput = errors.New("invalid input")
)

// Kind names the error kind of err for logs and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "MalformedResponse"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	default:
		return "ServiceUnavailable"
	}
}
