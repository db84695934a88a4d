package llm

import (
	"context"
	"errors"
	"net"
	"time"
)

// Error represents a provider-neutral LLM error.
type Error struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	RetryAfter  *time.Duration
	StatusCode  int
	ProviderErr error // Original provider-specific error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeRequestTooLarge ErrorType = "request_too_large"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeProvider        ErrorType = "provider"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// IsRetryableError reports whether the provider marked err as retryable.
// Nothing in this module retries; the flag is logged for callers that wrap it.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// TypeOf reports the ErrorType of err. Errors that were not produced by a
// provider client are classified by inspection: context deadlines are
// timeouts, net.Error values are network failures.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}
	return ErrorTypeUnknown
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimit,
		Message:     message,
		Retryable:   true,
		RetryAfter:  retryAfter,
		ProviderErr: providerErr,
	}
}

// NewRequestTooLargeError creates a new request too large error.
func NewRequestTooLargeError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRequestTooLarge,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewProviderError creates a new provider error.
func NewProviderError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewNetworkError creates a new network error. Context deadlines are
// reported as timeouts instead.
func NewNetworkError(message string, providerErr error) *Error {
	typ := ErrorTypeNetwork
	if errors.Is(providerErr, context.DeadlineExceeded) {
		typ = ErrorTypeTimeout
	}
	return &Error{
		Type:        typ,
		Message:     message,
		Retryable:   true,
		ProviderErr: providerErr,
	}
}

// FromStatus maps an HTTP status code returned by a provider to an Error.
func FromStatus(provider string, status int, message string, providerErr error) *Error {
	switch {
	case status == 429:
		return NewRateLimitError(provider+" rate limit: "+message, nil, providerErr)
	case status == 413:
		return NewRequestTooLargeError(provider+" request too large: "+message, providerErr)
	case status == 400 || status == 401 || status == 403 || status == 404 || status == 422:
		return &Error{
			Type:        ErrorTypeInvalidRequest,
			Message:     provider + " invalid request: " + message,
			StatusCode:  status,
			ProviderErr: providerErr,
		}
	case status >= 500:
		return &Error{
			Type:        ErrorTypeProvider,
			Message:     provider + " server error: " + message,
			Retryable:   true,
			StatusCode:  status,
			ProviderErr: providerErr,
		}
	default:
		return &Error{
			Type:        ErrorTypeProvider,
			Message:     provider + " API error: " + message,
			StatusCode:  status,
			ProviderErr: providerErr,
		}
	}
}
