package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
	Fields  []FieldError           `json:"-"`
	Err     error                  `json:"-"`
}

// FieldError describes a validation failure scoped to one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned sentinels still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden           = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized        = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrSessionRevoked      = New("SESSION_REVOKED", http.StatusUnauthorized, "session revoked")
	ErrConflict            = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInvalidTransition   = New("INVALID_TRANSITION", http.StatusConflict, "operation not allowed for the current session status")
	ErrInProgress          = New("OPERATION_IN_PROGRESS", http.StatusConflict, "another operation for this session is already in progress")
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss           = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrUpstreamUnavailable = New("UPSTREAM_UNAVAILABLE", http.StatusBadGateway, FallbackNetworkMessage)
	ErrUpstreamTimeout     = New("UPSTREAM_TIMEOUT", http.StatusGatewayTimeout, FallbackNetworkMessage)
)

// FallbackNetworkMessage is shown when the classroom service cannot be reached.
const FallbackNetworkMessage = "Unable to reach the classroom service. Please try again."

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrUpstreamTimeout.Code, ErrUpstreamTimeout.Status, ErrUpstreamTimeout.Message)
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Field builds a validation error carrying a single field message.
func Field(field, message string) *Error {
	clone := Clone(ErrValidation, message)
	clone.Fields = []FieldError{{Field: field, Message: message}}
	return clone
}

// WithFields returns a validation error carrying the provided field messages.
func WithFields(fields []FieldError) *Error {
	clone := Clone(ErrValidation, "")
	clone.Fields = fields
	if len(fields) > 0 {
		clone.Message = fields[0].Message
	}
	return clone
}

// Kind is the UI surface an error is rendered on.
type Kind string

const (
	KindValidation Kind = "validation"
	KindGeneral    Kind = "general"
	KindAuth       Kind = "auth"
	KindNetwork    Kind = "network"
)

// Classify maps any error to the surface that renders it.
func Classify(err error) Kind {
	appErr := FromError(err)
	if appErr == nil {
		return ""
	}
	switch {
	case len(appErr.Fields) > 0:
		return KindValidation
	case appErr.Status == http.StatusUnauthorized:
		return KindAuth
	case appErr.Code == ErrUpstreamUnavailable.Code || appErr.Code == ErrUpstreamTimeout.Code:
		return KindNetwork
	default:
		return KindGeneral
	}
}
