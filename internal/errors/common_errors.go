package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSchema      ErrorType = "SCHEMA"
	ErrTypeFormat      ErrorType = "FORMAT"
	ErrTypeParsing     ErrorType = "PARSING"
	ErrTypeStorage     ErrorType = "STORAGE"
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeNotFound    ErrorType = "NOT_FOUND"
	ErrTypeCorruptData ErrorType = "CORRUPT_DATA"
	ErrTypeConflict    ErrorType = "CONFLICT"
	ErrTypeConfig      ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError of the same type. A target with an
// empty message matches any error of that type, so callers can write
// errors.Is(err, &AppError{Type: ErrTypeNotFound}).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Message == "" {
		return e.Type == t.Type
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether any error in err's chain is an AppError of errType.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if stderrors.As(err, &appErr) {
			if appErr.Type == errType {
				return true
			}
			err = appErr.Cause
			continue
		}
		return false
	}
	return false
}

// Helper functions for common error types

// NewSchemaError reports a table that lacks a required column.
func NewSchemaError(missing ...string) *AppError {
	return NewAppError(ErrTypeSchema, fmt.Sprintf("missing required column(s): %v", missing), nil).
		WithContext("missing", missing)
}

// NewFormatError reports input that cannot be read as a table at all.
func NewFormatError(message string, cause error) *AppError {
	return NewAppError(ErrTypeFormat, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewValidationError creates a validation error for a named field.
func NewValidationError(field, message string) *AppError {
	return NewAppError(ErrTypeValidation, fmt.Sprintf("%s: %s", field, message), nil).
		WithContext("field", field)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewCorruptDataError reports a stored document that cannot be decoded.
func NewCorruptDataError(resource string, cause error) *AppError {
	return NewAppError(ErrTypeCorruptData, fmt.Sprintf("%s is corrupt", resource), cause)
}

// NewConflictError reports a name that is already taken.
func NewConflictError(message string) *AppError {
	return NewAppError(ErrTypeConflict, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
