package stt

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrMalformedAudio is returned when the server rejects the audio
	// payload. Not retriable; re-recording is the only fix.
	ErrMalformedAudio = errors.New("stt: malformed audio")

	// ErrTimeout is returned when a transcription exceeds its deadline.
	ErrTimeout = errors.New("stt: request timed out")

	// ErrUnreachable is returned when the server cannot be reached at all.
	ErrUnreachable = errors.New("stt: provider unreachable")

	// ErrProviderUnavailable is returned when no provider is available.
	ErrProviderUnavailable = errors.New("stt: no provider available")
)

// APIError represents an error response from a transcription API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Code is the error code from the API (if provided).
	Code string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stt [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// TranscriptionError wraps a failed transcription with provider context.
type TranscriptionError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("stt [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &TranscriptionError{Provider: provider, Err: err}
}
