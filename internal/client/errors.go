package client

import (
	"errors"
	"fmt"
)

// Sentinel kinds carried by TransportError.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNetwork covers dial failures, timeouts and cancelled contexts.
	ErrNetwork = errors.New("network failure")

	// ErrStatus indicates the backend answered with a non-2xx status.
	ErrStatus = errors.New("unexpected status")

	// ErrEncode indicates the request body could not be encoded; nothing was sent.
	ErrEncode = errors.New("invalid request")

	// ErrDecode indicates a 2xx response whose body could not be decoded.
	ErrDecode = errors.New("malformed response")

	// ErrInvalidFilter is returned before any request is made when a
	// findings filter holds a value outside the backend's enumerations.
	ErrInvalidFilter = errors.New("invalid findings filter")
)

// maxErrorBodyLen bounds the backend payload echoed in error messages.
const maxErrorBodyLen = 200

// TransportError is the only error type raised by a remote operation.
// The backend's error payload is attached verbatim for diagnostics and
// is never interpreted.
type TransportError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int
	Body       string
	Kind       error
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + truncate(e.Body, maxErrorBodyLen)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *TransportError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// StatusCode extracts the HTTP status from err, or 0 if there is none.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
