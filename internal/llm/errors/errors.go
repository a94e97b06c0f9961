// Package errors classifies LLM provider failures for retry decisions.
// Transient failures (timeouts, rate limits, network, provider outages) are
// retryable; authentication, content filtering, and validation failures are
// not.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorType categorizes provider failures for retry classification.
type ErrorType string

const (
	// ErrorTypeTimeout indicates request timeout or deadline exceeded (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates a rate limit was exceeded (retryable with backoff).
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates network connectivity issues (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates the provider service is unavailable (retryable).
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeAuth indicates authentication failed (non-retryable).
	ErrorTypeAuth ErrorType = "authentication"

	// ErrorTypeContent indicates content blocked by safety filters (non-retryable).
	ErrorTypeContent ErrorType = "content_filtered"

	// ErrorTypeValidation indicates the provider rejected the request shape (non-retryable).
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeUnknown indicates an unclassified error (non-retryable).
	ErrorTypeUnknown ErrorType = "unknown"
)

var (
	// ErrUnknownProvider indicates an unknown or unsupported provider.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyCompletion indicates the provider returned no usable content.
	ErrEmptyCompletion = errors.New("empty completion from provider")

	// ErrMaxRetriesExceeded indicates the retry budget is spent.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ProviderError captures a structured failure from an LLM provider with
// enough context to classify it and honor retry guidance.
type ProviderError struct {
	// Provider names the failing backend.
	Provider string `json:"provider"`

	// StatusCode is the HTTP status when known, zero otherwise.
	StatusCode int `json:"status_code,omitempty"`

	// Message is the provider's error message.
	Message string `json:"message"`

	// Type classifies the failure for retry decisions.
	Type ErrorType `json:"type"`

	// RetryAfter carries the provider's retry guidance in seconds, zero when
	// none was given.
	RetryAfter int `json:"retry_after,omitempty"`

	// Cause is the underlying SDK error.
	Cause error `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying SDK error for errors.Is/As chains.
func (e *ProviderError) Unwrap() error { return e.Cause }

// IsRetryable reports whether the failure warrants another attempt.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

// ClassifyStatus maps an HTTP status code to an error type.
func ClassifyStatus(status int) ErrorType {
	switch {
	case status == 401 || status == 403:
		return ErrorTypeAuth
	case status == 408:
		return ErrorTypeTimeout
	case status == 422 || status == 400:
		return ErrorTypeValidation
	case status == 429:
		return ErrorTypeRateLimit
	case status >= 500:
		return ErrorTypeProvider
	default:
		return ErrorTypeUnknown
	}
}

// IsRetryable reports whether any error in the chain warrants a retry.
// Provider errors classify themselves; network timeouts and per-request
// deadline expiry are retryable; caller cancellation is not.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// RetryAfter extracts the provider's retry guidance from the error chain,
// zero when none is present.
func RetryAfter(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}
