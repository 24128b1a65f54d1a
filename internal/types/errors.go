package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Loom errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Pipeline error codes
const (
	PIPELINE_DEFINITION_INVALID ErrorCode = "PIPELINE_DEFINITION_INVALID"
	PIPELINE_STEP_FAILED        ErrorCode = "PIPELINE_STEP_FAILED"
	PIPELINE_ABORTED            ErrorCode = "PIPELINE_ABORTED"
	PIPELINE_UNKNOWN_ARTIFACT   ErrorCode = "PIPELINE_UNKNOWN_ARTIFACT"
)

// LoomError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and a retryability hint so
// callers can distinguish transient failures from permanent ones without
// string matching. Language-level panics are reserved for programming
// contract violations only.
type LoomError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *LoomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *LoomError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *LoomError) Is(target error) bool {
	var loomErr *LoomError
	if errors.As(target, &loomErr) {
		return e.Code == loomErr.Code
	}
	return false
}

// NewError creates a new non-retryable LoomError with the given code and message.
func NewError(code ErrorCode, message string) *LoomError {
	return &LoomError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable LoomError with the given code and
// message. Use this for transient errors that may succeed on retry.
func NewRetryableError(code ErrorCode, message string) *LoomError {
	return &LoomError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable LoomError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *LoomError {
	return &LoomError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}
