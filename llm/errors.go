package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes gateway errors.
type ErrorCode string

const (
	ErrNotConfigured   ErrorCode = "NOT_CONFIGURED"
	ErrUnknownProvider ErrorCode = "UNKNOWN_PROVIDER"
	ErrCapability      ErrorCode = "CAPABILITY_ERROR"
	ErrTransform       ErrorCode = "TRANSFORM_ERROR"
	ErrAPI             ErrorCode = "API_ERROR"
	ErrStream          ErrorCode = "STREAM_ERROR"
)

// Error is the provider-neutral gateway error. All adapter and gateway
// failures surface as one of these so callers can branch on Code,
// Provider, and StatusCode without provider-specific knowledge.
type Error struct {
	Code       ErrorCode
	Message    string
	Provider   string
	StatusCode int    // HTTP status for API_ERROR, zero otherwise
	Raw        []byte // unmodified provider error body, for diagnostics
	Err        error  // wrapped cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Provider != "" {
		fmt.Fprintf(&b, " [%s]", e.Provider)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CapabilityError reports that requested content exceeds the resolved
// model's declared capabilities. It is raised before any network call and
// is never retried.
type CapabilityError struct {
	Provider   string
	Model      string
	Violations []string
	Hint       string // first violated capability name
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s [%s/%s]: %s", ErrCapability, e.Provider, e.Model, strings.Join(e.Violations, "; "))
}

// TransformError reports that a content part cannot be represented in a
// provider's wire format. Adapters never silently drop content.
type TransformError struct {
	Provider string
	PartType ContentPartType
	Message  string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s [%s]: %s part: %s", ErrTransform, e.Provider, e.PartType, e.Message)
}

// NewNotConfiguredError creates an error for a provider missing credentials.
func NewNotConfiguredError(provider string) *Error {
	return &Error{
		Code:     ErrNotConfigured,
		Message:  "no API key configured",
		Provider: provider,
	}
}

// NewUnknownProviderError creates an error for an unroutable provider id.
func NewUnknownProviderError(provider string) *Error {
	return &Error{
		Code:     ErrUnknownProvider,
		Message:  "no adapter registered for provider",
		Provider: provider,
	}
}

// NewAPIError creates an error from a non-2xx provider response.
func NewAPIError(provider string, statusCode int, message string, raw []byte) *Error {
	return &Error{
		Code:       ErrAPI,
		Message:    message,
		Provider:   provider,
		StatusCode: statusCode,
		Raw:        raw,
	}
}

// NewStreamError creates an error for a stream that failed or ended
// without a terminal event.
func NewStreamError(provider, message string, cause error) *Error {
	return &Error{
		Code:     ErrStream,
		Message:  message,
		Provider: provider,
		Err:      cause,
	}
}

// Code extracts the gateway error code from an error, or "" if the error
// is not gateway-shaped.
func Code(err error) ErrorCode {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return ErrCapability
	}
	var trErr *TransformError
	if errors.As(err, &trErr) {
		return ErrTransform
	}
	return ""
}

// IsRetryable reports whether the gateway's retry loop may re-attempt
// after this error. Capability, transform, configuration and routing
// failures are client-side and final; an API_ERROR with a 4xx status will
// not change on retry. Everything else (network failures, timeouts, 5xx,
// truncated streams) is retryable.
func IsRetryable(err error) bool {
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return false
	}
	var trErr *TransformError
	if errors.As(err, &trErr) {
		return false
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		switch gwErr.Code {
		case ErrNotConfigured, ErrUnknownProvider:
			return false
		}
		if gwErr.StatusCode >= 400 && gwErr.StatusCode < 500 {
			return false
		}
	}
	return true
}
