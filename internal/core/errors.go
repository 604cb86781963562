package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned when an operation runs without a principal.
	ErrAuthentication = errors.New("authentication required")
	// ErrConfiguration covers missing setup such as an unset base currency or API key.
	ErrConfiguration = errors.New("configuration error")
	// ErrOwnership is returned when a principal touches another user's record.
	ErrOwnership = errors.New("record belongs to another user")
	ErrNotFound  = errors.New("not found")
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrRateFetch matches every *RateFetchError via errors.Is.
	ErrRateFetch = errors.New("exchange rate fetch failed")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RateFetchError wraps any failure to obtain a rate table for Currency,
// including a missing rate when a strict conversion policy is in effect.
type RateFetchError struct {
	Currency string
	Cause    error
}

func (e *RateFetchError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("exchange rates for %s unavailable", e.Currency)
	}
	return fmt.Sprintf("exchange rates for %s unavailable: %v", e.Currency, e.Cause)
}

func (e *RateFetchError) Unwrap() error {
	return e.Cause
}

func (e *RateFetchError) Is(target error) bool {
	return target == ErrRateFetch
}
