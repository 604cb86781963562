package log

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrorType classifies err into one of the ErrorType* categories.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrAuthentication):
		return ErrorTypeAuth
	case errors.Is(err, core.ErrOwnership):
		return ErrorTypeOwnership
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrConfiguration):
		return ErrorTypeConfiguration
	case errors.Is(err, core.ErrRateFetch):
		return ErrorTypeRateFetch
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	default:
		return ErrorTypeInternal
	}
}

// WithErrorType adds the error and its category
func (f LogFields) WithErrorType(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}
