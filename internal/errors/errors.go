// Package errors provides coded errors shared across the client core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies an error for retry and notification decisions.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrStorage   ErrorCode = "STORAGE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Transport errors
	ErrNetwork          ErrorCode = "NETWORK_ERROR"
	ErrServer           ErrorCode = "SERVER_ERROR"
	ErrConnectionFailed ErrorCode = "CONNECTION_FAILED"

	// Sync errors
	ErrSyncFailed     ErrorCode = "SYNC_FAILED"
	ErrSyncConflict   ErrorCode = "SYNC_CONFLICT"
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or ErrInternal when none is present.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Retryable reports whether the error is transient: the operation that
// produced it should be attempted again on a later cycle.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case ErrNetwork, ErrServer, ErrConnectionFailed, ErrSyncFailed:
		return true
	}
	return false
}
