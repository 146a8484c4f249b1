package core

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	ErrClassifierUnavailable ErrorCode = "classifier_unavailable"
	ErrProviderError         ErrorCode = "provider_error"
	ErrToolError             ErrorCode = "tool_error"
	ErrTimeout               ErrorCode = "timeout"
	ErrCanceled              ErrorCode = "canceled"
	ErrBadRequest            ErrorCode = "bad_request"
	ErrConfiguration         ErrorCode = "configuration"
	ErrInternal              ErrorCode = "internal"
)

// SafetyError provides typed context for failures inside the safety core.
// Provider and network failures are converted into a SafetyError at the
// adapter boundary; only configuration errors may terminate the process.
type SafetyError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	wrapped error
}

func (e *SafetyError) Error() string {
	if e == nil {
		return ""
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *SafetyError) Unwrap() error { return e.wrapped }

// WrapError creates a SafetyError with the provided code, preserving an
// existing SafetyError if one is already in the chain.
func WrapError(err error, code ErrorCode) *SafetyError {
	if err == nil {
		return nil
	}
	var se *SafetyError
	if errors.As(err, &se) {
		return se
	}
	return &SafetyError{Code: code, Message: err.Error(), wrapped: err}
}

// NewError builds a SafetyError explicitly.
func NewError(code ErrorCode, message string, opts ...ErrorOption) *SafetyError {
	e := &SafetyError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ErrorOption mutates a SafetyError during construction.
type ErrorOption func(*SafetyError)

// WithDetails attaches structured context.
func WithDetails(details map[string]any) ErrorOption {
	return func(e *SafetyError) { e.Details = details }
}

// WithWrapped attaches an underlying error.
func WithWrapped(err error) ErrorOption {
	return func(e *SafetyError) { e.wrapped = err }
}

func classify(code ErrorCode) func(error) bool {
	return func(err error) bool {
		if err == nil {
			return false
		}
		var se *SafetyError
		if errors.As(err, &se) {
			return se.Code == code
		}
		return false
	}
}

// Predicates for common error handling paths.
var (
	IsClassifierUnavailable = classify(ErrClassifierUnavailable)
	IsProviderError         = classify(ErrProviderError)
	IsToolError             = classify(ErrToolError)
	IsBadRequest            = classify(ErrBadRequest)
	IsTimeout               = classify(ErrTimeout)
	IsCanceled              = classify(ErrCanceled)
	IsConfiguration         = classify(ErrConfiguration)
)
