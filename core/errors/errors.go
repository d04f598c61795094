// Package errors provides standardized error types and helpers for the Gita Companion codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthorized indicates a missing, invalid or expired credential
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOutOfRange indicates a chapter or verse outside the corpus
	ErrOutOfRange = errors.New("out of range")
	// ErrUpstream indicates the verse-content service could not be reached or read
	ErrUpstream = errors.New("upstream failure")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "user", "bookmark")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNotFound, e.Err}
	}
	return []error{ErrNotFound}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

// AuthError represents a missing, malformed, invalid or expired credential.
type AuthError struct {
	Reason string // Why the credential was rejected
	Err    error  // Underlying error, if any
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
	return "unauthorized"
}

func (e *AuthError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnauthorized, e.Err}
	}
	return []error{ErrUnauthorized}
}

// ConflictError represents an attempt to create something that already exists.
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e *ConflictError) Unwrap() error {
	return ErrAlreadyExists
}

// OutOfRangeError reports a chapter or verse number outside the corpus.
type OutOfRangeError struct {
	What  string // "chapter" or "verse"
	Value int
	Min   int
	Max   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.What, e.Value, e.Min, e.Max)
}

func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}

// UpstreamError represents a failed fetch from the verse-content service.
// The cause is kept for logs; it is never shown to API clients.
type UpstreamError struct {
	Path       string // Upstream request path
	StatusCode int    // HTTP status, 0 when no response was received
	Err        error  // Underlying error, if any
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream fetch %s: status %d", e.Path, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("upstream fetch %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("upstream fetch %s failed", e.Path)
	}
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewAuth creates an AuthError
func NewAuth(reason string, err error) *AuthError {
	return &AuthError{
		Reason: reason,
		Err:    err,
	}
}

// NewConflict creates a ConflictError
func NewConflict(resource, message string) *ConflictError {
	return &ConflictError{
		Resource: resource,
		Message:  message,
	}
}

// NewOutOfRange creates an OutOfRangeError
func NewOutOfRange(what string, value, min, max int) *OutOfRangeError {
	return &OutOfRangeError{
		What:  what,
		Value: value,
		Min:   min,
		Max:   max,
	}
}

// NewUpstream creates an UpstreamError
func NewUpstream(path string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		Path:       path,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
