package types

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind is the stable classification of a model-service failure.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindServer    ErrorKind = "server"
	KindRequest   ErrorKind = "request"
	KindTimeout   ErrorKind = "timeout"
	KindTransport ErrorKind = "transport"
	KindMalformed ErrorKind = "malformed"
)

// Error wraps a provider SDK failure with its classification.
type Error struct {
	Provider   string
	Operation  string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (%s, status %d): %v", e.Provider, e.Operation, e.Kind, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s %s failed (%s): %v", e.Provider, e.Operation, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Transient reports whether the failure is on the transport side rather than
// a rejection by the model service.
func (e *Error) Transient() bool {
	return e != nil && (e.Kind == KindTimeout || e.Kind == KindTransport)
}

// NewError classifies err for provider/operation. statusCode is the HTTP
// status extracted from the SDK error, or 0 when the request never got a
// response.
func NewError(provider string, operation string, statusCode int, err error) *Error {
	return &Error{
		Provider:   provider,
		Operation:  operation,
		Kind:       KindFor(statusCode, err),
		StatusCode: statusCode,
		Err:        err,
	}
}

// KindFor maps an HTTP status (or transport-level error) to an ErrorKind.
func KindFor(statusCode int, err error) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case statusCode >= http.StatusInternalServerError:
		return KindServer
	case statusCode >= http.StatusBadRequest:
		return KindRequest
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindTransport
}
