package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure surfaced to the chat views
type Kind string

const (
	// KindNetwork covers transport failures and non-2xx backend statuses
	KindNetwork Kind = "network"
	// KindShape means a response was missing required fields or could not be decoded
	KindShape Kind = "shape"
	// KindValidation means local input was rejected before any request was made
	KindValidation Kind = "validation"
	// KindUnauthorized means the session has no usable bearer token
	KindUnauthorized Kind = "unauthorized"
	// KindNotFound means the backend reported the resource as absent
	KindNotFound Kind = "not_found"
)

// AppError represents an application error with a kind, HTTP status code and error code
type AppError struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// NewError creates a new application error
func NewError(kind Kind, statusCode int, code string, message string) *AppError {
	return &AppError{
		Kind:       kind,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewNetworkError creates a transport or status failure. status is the
// backend's HTTP status, or 0 when no response was received.
func NewNetworkError(status int, message string) *AppError {
	appErr := NewError(KindNetwork, http.StatusBadGateway, "NETWORK_ERROR", message)
	if status != 0 {
		appErr.Details = map[string]int{"status": status}
	}
	return appErr
}

// NewShapeError creates an error for a malformed backend response
func NewShapeError(message string) *AppError {
	return NewError(KindShape, http.StatusBadGateway, "SHAPE_ERROR", message)
}

// NewValidationError creates a 400 error for rejected local input
func NewValidationError(code string, message string) *AppError {
	return NewError(KindValidation, http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(KindUnauthorized, http.StatusUnauthorized, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(KindNotFound, http.StatusNotFound, code, message)
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of the first AppError in err's chain, or "" if there is none
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err carries an AppError of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Is checks if the error carries an AppError with the same code as target
func Is(err error, target *AppError) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	return appErr.Code == target.Code
}
