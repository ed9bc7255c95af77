package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared by storage, services and transports. Callers match them
// with errors.Is; storage wraps driver errors onto these.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("storage unavailable")

	// ErrSessionClosed is returned when a session is finalized, abandoned or
	// appended to after it has already been closed.
	ErrSessionClosed = fmt.Errorf("session already closed: %w", ErrConflict)
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level problems found while parsing input.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem with field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e when at least one field failed, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Invalid is shorthand for a single-field validation error.
func Invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Kinds reported in API error bodies.
const (
	KindValidation  = "validation"
	KindNotFound    = "not_found"
	KindConflict    = "conflict"
	KindUnavailable = "unavailable"
	KindInternal    = "internal"

	// KindUnauthorized covers a missing or rejected caller identity or key.
	KindUnauthorized = "unauthorized"

	// CodeSessionClosed narrows a conflict to ErrSessionClosed.
	CodeSessionClosed = "session_closed"
)

// APIError is the JSON body of every non-2xx API response.
type APIError struct {
	Message string       `json:"error"`
	Kind    string       `json:"kind"`
	Code    string       `json:"code,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// NewAPIError classifies err into a response body.
func NewAPIError(err error) APIError {
	body := APIError{Message: err.Error(), Kind: KindInternal}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		body.Kind = KindValidation
		body.Fields = verr.Fields
	case errors.Is(err, ErrNotFound):
		body.Kind = KindNotFound
	case errors.Is(err, ErrSessionClosed):
		body.Kind = KindConflict
		body.Code = CodeSessionClosed
	case errors.Is(err, ErrConflict):
		body.Kind = KindConflict
	case errors.Is(err, ErrUnavailable):
		body.Kind = KindUnavailable
	}
	return body
}

// Err converts a decoded body back into an error matching the original kind.
func (e APIError) Err() error {
	switch e.Kind {
	case KindValidation:
		return &ValidationError{Fields: e.Fields}
	case KindNotFound:
		return fmt.Errorf("%s: %w", e.Message, ErrNotFound)
	case KindConflict:
		if e.Code == CodeSessionClosed {
			return fmt.Errorf("%s: %w", e.Message, ErrSessionClosed)
		}
		return fmt.Errorf("%s: %w", e.Message, ErrConflict)
	case KindUnavailable:
		return fmt.Errorf("%s: %w", e.Message, ErrUnavailable)
	}
	return errors.New(e.Message)
}
