// Package taskerr provides standardized error types for the task pipeline.
package taskerr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Code represents semantic error codes for consistent error handling
type Code string

const (
	// Validation errors
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeRequiredField Code = "REQUIRED_FIELD"
	CodeInvalidFormat Code = "INVALID_FORMAT"
	CodeInvalidValue  Code = "INVALID_VALUE"

	// Resource errors
	CodeNotFound Code = "NOT_FOUND"

	// Upstream and processing errors
	CodeRateLimited Code = "RATE_LIMITED"
	CodeInternal    Code = "INTERNAL_ERROR"
)

// FieldError describes a single validation failure for one field.
type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ValidationError aggregates every field failure found during a write,
// not just the first one.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the Go error interface
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add appends a field failure to the error.
func (e *ValidationError) Add(field string, code Code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// HasErrors reports whether any field failed validation.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ErrOrNil returns the error if it collected any failures, nil otherwise.
func (e *ValidationError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field string, code Code, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Code: code, Message: message}}}
}

// AIServiceError represents an upstream AI provider failure. It is recorded
// as a failed execution and never propagated past the orchestrator boundary.
type AIServiceError struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

// Error implements the Go error interface
func (e *AIServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ai service: %s: %v", e.Message, e.Cause)
	}
	return "ai service: " + e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *AIServiceError) Unwrap() error { return e.Cause }

// NewAIServiceError creates an upstream failure error.
func NewAIServiceError(message string, retryable bool, cause error) *AIServiceError {
	return &AIServiceError{Message: message, Retryable: retryable, Cause: cause}
}

// IsRetryable reports whether err is a retryable AI service failure.
func IsRetryable(err error) bool {
	var aiErr *AIServiceError
	if errors.As(err, &aiErr) {
		return aiErr.Retryable
	}
	return false
}

// RateLimitError marks a request rejected by the rate limiter.
type RateLimitError struct {
	Limit      int           `json:"limit"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Error implements the Go error interface
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %d requests per window exceeded, retry in %s", e.Limit, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: %d requests per window exceeded", e.Limit)
}

// IsRateLimited reports whether err marks a rate-limited request.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// NotFoundError marks a missing resource.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

// Error implements the Go error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFoundError creates a missing-resource error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err marks a missing resource.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
