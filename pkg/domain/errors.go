// Package domain holds the application-wide error taxonomy and shared value
// helpers used by every service layer. Handlers translate these types to
// HTTP status codes; nothing below the handler layer knows about HTTP.
package domain

import (
	"errors"
	"fmt"
)

// ValidationError indicates malformed or rule-violating input. It is raised
// synchronously and must block the attempted mutation.
type ValidationError struct {
	Message string
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

// NotFoundError indicates the requested resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError creates a NotFoundError for the given resource and identifier.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvalidOperationError indicates an operation that is structurally not
// allowed, such as removing a pickup stop or an illegal status transition.
type InvalidOperationError struct {
	Message string
}

// NewInvalidOperationError creates an InvalidOperationError with the given message.
func NewInvalidOperationError(message string) *InvalidOperationError {
	return &InvalidOperationError{Message: message}
}

// NewInvalidStateError creates an InvalidOperationError for an illegal
// state transition.
func NewInvalidStateError(from, to string) *InvalidOperationError {
	return &InvalidOperationError{Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

func (e *InvalidOperationError) Error() string {
	return "invalid operation: " + e.Message
}

// ConflictError indicates a concurrent modification was detected, typically
// by the optimistic locking version check.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with the given message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// InsufficientLocationError indicates a route cannot be resolved because too
// few locations carry enough address data. Recoverable: the UI should prompt
// for more address data rather than treat it as fatal.
type InsufficientLocationError struct {
	Message string
}

// NewInsufficientLocationError creates an InsufficientLocationError with the given message.
func NewInsufficientLocationError(message string) *InsufficientLocationError {
	return &InsufficientLocationError{Message: message}
}

func (e *InsufficientLocationError) Error() string {
	return "insufficient location data: " + e.Message
}

// UpstreamUnavailableError indicates the external routing service failed or
// timed out. Recoverable: callers keep the last successful resolution.
type UpstreamUnavailableError struct {
	Message string
	Err     error
}

// NewUpstreamUnavailableError wraps an upstream failure.
func NewUpstreamUnavailableError(message string, err error) *UpstreamUnavailableError {
	return &UpstreamUnavailableError{Message: message, Err: err}
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("routing service unavailable: %s: %v", e.Message, e.Err)
	}
	return "routing service unavailable: " + e.Message
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsInvalidOperation reports whether err is an InvalidOperationError.
func IsInvalidOperation(err error) bool {
	var target *InvalidOperationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsInsufficientLocation reports whether err is an InsufficientLocationError.
func IsInsufficientLocation(err error) bool {
	var target *InsufficientLocationError
	return errors.As(err, &target)
}

// IsUpstreamUnavailable reports whether err is an UpstreamUnavailableError.
func IsUpstreamUnavailable(err error) bool {
	var target *UpstreamUnavailableError
	return errors.As(err, &target)
}
