package sustainalytics

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so the host can decide how to react.
type ErrorKind string

const (
	// ErrorKindConfig marks bad or missing table/server options. Fatal,
	// surfaced before any network call.
	ErrorKindConfig ErrorKind = "config"

	// ErrorKindAuth marks a failed credential exchange, including the case
	// where a forced refresh still yields an unauthorized response.
	ErrorKindAuth ErrorKind = "auth"

	// ErrorKindTransport marks network-level failures with no HTTP response.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindHTTPStatus marks a received non-2xx response.
	ErrorKindHTTPStatus ErrorKind = "http_status"

	// ErrorKindDecode marks a 2xx response with a malformed JSON body.
	ErrorKindDecode ErrorKind = "decode"

	// ErrorKindSchema marks a row missing a required identifying field.
	ErrorKindSchema ErrorKind = "schema"
)

// Error is the engine-wide error type. Endpoint and StatusCode are filled
// where they apply so the host has enough context to log upstream.
type Error struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("sustainalytics %s error", e.Kind)
	if e.Endpoint != "" {
		msg += fmt.Sprintf(" (endpoint %s)", e.Endpoint)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or "" if err is not an engine
// error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NewConfigError reports an invalid or missing option.
func NewConfigError(format string, args ...any) *Error {
	return &Error{Kind: ErrorKindConfig, Message: fmt.Sprintf(format, args...)}
}

// NewSchemaError reports a row missing a required identifying field.
func NewSchemaError(endpoint, format string, args ...any) *Error {
	return &Error{Kind: ErrorKindSchema, Endpoint: endpoint, Message: fmt.Sprintf(format, args...)}
}
