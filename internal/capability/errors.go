package capability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loom-ai/loom/internal/types"
)

// Capability error codes follow the Loom error pattern.
const (
	// Provider errors
	ErrProviderUnavailable  types.ErrorCode = "CAP_PROVIDER_UNAVAILABLE"
	ErrProviderUnauthorized types.ErrorCode = "CAP_PROVIDER_UNAUTHORIZED"
	ErrProviderRateLimited  types.ErrorCode = "CAP_PROVIDER_RATE_LIMITED"
	ErrQuotaExceeded        types.ErrorCode = "CAP_QUOTA_EXCEEDED"

	// Request errors
	ErrInvalidRequest  types.ErrorCode = "CAP_INVALID_REQUEST"
	ErrContentFiltered types.ErrorCode = "CAP_CONTENT_FILTERED"

	// Completion errors
	ErrGenerationFailed types.ErrorCode = "CAP_GENERATION_FAILED"
	ErrTimeoutExceeded  types.ErrorCode = "CAP_TIMEOUT_EXCEEDED"
	ErrContextCanceled  types.ErrorCode = "CAP_CONTEXT_CANCELED"

	// Network errors
	ErrNetworkFailed types.ErrorCode = "CAP_NETWORK_FAILED"
)

// IsRetryable determines if an error is transient and may succeed on retry.
// The step executor uses this to decide between retrying a call and
// aborting the step.
func IsRetryable(err error) bool {
	var loomErr *types.LoomError
	if !errors.As(err, &loomErr) {
		return false
	}

	if loomErr.Retryable {
		return true
	}

	switch loomErr.Code {
	case ErrNetworkFailed, ErrProviderRateLimited, ErrQuotaExceeded,
		ErrProviderUnavailable, ErrTimeoutExceeded:
		return true

	// Context cancellation is user-initiated, never retried.
	case ErrContextCanceled:
		return false

	// Auth and policy failures will not change on retry.
	case ErrProviderUnauthorized, ErrContentFiltered, ErrInvalidRequest:
		return false

	default:
		return false
	}
}

// NewRateLimitError creates a retryable error for rate limiting.
func NewRateLimitError(providerName string) *types.LoomError {
	return &types.LoomError{
		Code:      ErrProviderRateLimited,
		Message:   "rate limit exceeded for provider: " + providerName,
		Retryable: true,
	}
}

// NewProviderUnavailableError creates a retryable error for a temporarily
// unavailable provider.
func NewProviderUnavailableError(providerName string, cause error) *types.LoomError {
	return &types.LoomError{
		Code:      ErrProviderUnavailable,
		Message:   "provider temporarily unavailable: " + providerName,
		Retryable: true,
		Cause:     cause,
	}
}

// NewNetworkError creates a retryable error for network failures.
func NewNetworkError(message string, cause error) *types.LoomError {
	return &types.LoomError{
		Code:      ErrNetworkFailed,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewTimeoutError creates a retryable error for timeout failures.
func NewTimeoutError(message string) *types.LoomError {
	return &types.LoomError{
		Code:      ErrTimeoutExceeded,
		Message:   message,
		Retryable: true,
	}
}

// NewAuthError creates a non-retryable authentication error.
func NewAuthError(providerName string, cause error) *types.LoomError {
	return &types.LoomError{
		Code:    ErrProviderUnauthorized,
		Message: fmt.Sprintf("provider '%s' authentication failed", providerName),
		Cause:   cause,
	}
}

// NewContentFilteredError creates a non-retryable content policy error.
func NewContentFilteredError(providerName string) *types.LoomError {
	return types.NewError(ErrContentFiltered,
		fmt.Sprintf("provider '%s' refused the request on content policy grounds", providerName))
}

// NewInvalidRequestError creates a non-retryable error for malformed requests.
func NewInvalidRequestError(message string) *types.LoomError {
	return types.NewError(ErrInvalidRequest, message)
}

// NewGenerationError creates an error for generation failures.
func NewGenerationError(message string, cause error) *types.LoomError {
	return types.WrapError(ErrGenerationFailed, message, cause)
}

// TranslateError translates raw SDK errors into Loom errors based on error
// message content. Errors that are already LoomErrors pass through.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var loomErr *types.LoomError
	if errors.As(err, &loomErr) {
		return err
	}

	lowerMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lowerMsg, "unauthorized") || strings.Contains(lowerMsg, "authentication") || strings.Contains(lowerMsg, "api key"):
		return NewAuthError(provider, err)
	case strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests"):
		return NewRateLimitError(provider)
	case strings.Contains(lowerMsg, "content policy") || strings.Contains(lowerMsg, "content filter"):
		return NewContentFilteredError(provider)
	case strings.Contains(lowerMsg, "timeout") || strings.Contains(lowerMsg, "deadline"):
		return NewTimeoutError(err.Error())
	case strings.Contains(lowerMsg, "network") || strings.Contains(lowerMsg, "connection"):
		return NewNetworkError(err.Error(), err)
	default:
		return NewProviderUnavailableError(provider, err)
	}
}
