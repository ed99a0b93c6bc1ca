package errors

import (
	"fmt"
	"net/http"
)

// FromError converts a standard error to an AppError.
// An AppError anywhere in the chain is returned as-is; anything else
// becomes an internal network-kind failure.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := As(err); ok {
		return appErr
	}

	return &AppError{
		Kind:       KindNetwork,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    fmt.Sprintf("An unexpected error occurred: %s", err.Error()),
		Err:        err,
	}
}

// StatusForKind maps a kind to the status the web front answers with
func StatusForKind(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindShape, KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		if appErr.StatusCode != 0 {
			return appErr.StatusCode
		}
		return StatusForKind(appErr.Kind)
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an AppError, returns "UNKNOWN_ERROR" if not an AppError
func GetErrorCode(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorMessage extracts the error message, returns original error message if not an AppError
func GetErrorMessage(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
