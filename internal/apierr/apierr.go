// Package apierr carries the error taxonomy surfaced at the handler boundary.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for status mapping.
type Kind string

const (
	KindConfiguration    Kind = "config_missing"
	KindMalformedRequest Kind = "malformed_request"
	KindProviderHTTP     Kind = "provider_http"
	KindRunTimeout       Kind = "run_timeout"
	KindRunTerminal      Kind = "run_failed"
	KindInternal         Kind = "internal"
)

// Error is an error with an HTTP status and a user-facing message.
type Error struct {
	Status  int
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" && e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Detail returns the underlying error text for debug responses.
func (e *Error) Detail() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// New builds an Error.
func New(status int, kind Kind, msg string, err error) *Error {
	return &Error{Status: status, Kind: kind, Message: msg, Err: err}
}

// Config reports missing provider or storage configuration.
func Config(msg string) *Error {
	return New(http.StatusInternalServerError, KindConfiguration, msg, nil)
}

// BadRequest reports a request the client must fix and resubmit.
func BadRequest(msg string, err error) *Error {
	return New(http.StatusBadRequest, KindMalformedRequest, msg, err)
}

// Provider wraps a non-2xx response from the model provider.
func Provider(err error) *Error {
	return New(http.StatusInternalServerError, KindProviderHTTP, "model provider request failed", err)
}

// Timeout reports a run that did not finish within the ceiling.
func Timeout(err error) *Error {
	return New(http.StatusGatewayTimeout, KindRunTimeout, "assessment timed out, please try again", err)
}

// RunFailed reports a run that ended failed, cancelled or expired.
func RunFailed(err error) *Error {
	return New(http.StatusInternalServerError, KindRunTerminal, "assessment run did not complete", err)
}

// Internal wraps anything else.
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, "unexpected error", err)
}

// From returns err as an *Error, wrapping unknown errors as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
