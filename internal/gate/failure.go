package gate

import (
	"errors"
	"fmt"
	"time"
)

// The gate distinguishes a closed set of failure classes so the response
// writer can map each one to a fixed HTTP status and JSON shape. Every
// variant is immutable once constructed and carries the structured data
// needed to render a response without re-parsing message text.

// ValidationError reports client input that is structurally wrong or out of
// range. Recoverable by the client.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError; field may be empty when the
// failure is not tied to a single input field.
func NewValidationError(message, field string) error {
	return &ValidationError{Message: message, Field: field}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// SecurityError reports a payload matching a disallowed pattern. The message
// names the matched pattern and is logged server-side only; clients always
// receive a generic string.
type SecurityError struct {
	Message string
	Code    string
}

func (e *SecurityError) Error() string { return e.Message }

// NewSecurityError builds a SecurityError with the default code.
func NewSecurityError(message string) error {
	return &SecurityError{Message: message, Code: "SECURITY_ERROR"}
}

// IsSecurity reports whether err is a SecurityError.
func IsSecurity(err error) bool {
	var s *SecurityError
	return errors.As(err, &s)
}

// ResourceError reports a temporary inability to serve: capacity exhausted,
// backend not ready, or a failed backend call. Retryable after backoff.
type ResourceError struct {
	Message      string
	ResourceType string
}

func (e *ResourceError) Error() string { return e.Message }

// NewResourceError builds a ResourceError for the named resource kind
// (e.g. "compute", "model", "backend").
func NewResourceError(message, resourceType string) error {
	return &ResourceError{Message: message, ResourceType: resourceType}
}

// IsResource reports whether err is a ResourceError.
func IsResource(err error) bool {
	var r *ResourceError
	return errors.As(err, &r)
}

// MalformedError reports a request body that failed to parse as the expected
// shape before validation even ran.
type MalformedError struct {
	Message string
}

func (e *MalformedError) Error() string { return e.Message }

// NewMalformedError builds a MalformedError.
func NewMalformedError(message string) error { return &MalformedError{Message: message} }

// IsMalformed reports whether err is a MalformedError.
func IsMalformed(err error) bool {
	var m *MalformedError
	return errors.As(err, &m)
}

// RateLimitError is raised by the rate limiter when a client exhausts its
// sliding window. It bypasses the generic catch-all and maps to 429.
type RateLimitError struct {
	Max    int
	Window time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded: %d requests per %d seconds", e.Max, int(e.Window.Seconds()))
}

// IsRateLimit reports whether err is a RateLimitError.
func IsRateLimit(err error) bool {
	var r *RateLimitError
	return errors.As(err, &r)
}

// UnauthorizedError reports a missing or malformed bearer credential on an
// operation that requires one. This is a format check only, not credential
// verification.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// IsUnauthorized reports whether err is an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var u *UnauthorizedError
	return errors.As(err, &u)
}
