package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrNumberTaken is the ErrDuplicate raised when a document number is already used.
var ErrNumberTaken = fmt.Errorf("%w: document number taken", ErrDuplicate)

// ErrConflict indicates that the operation clashes with the current state of a resource.
var ErrConflict = errors.New("conflict")

// ErrTransient indicates an infrastructure failure (database, network) that aborted the operation.
// Retrying the whole operation may succeed.
var ErrTransient = errors.New("transient failure")

// ErrNotification indicates that a downstream notification could not be delivered.
var ErrNotification = errors.New("notification failed")

// AppError carries a status-like code and a message alongside the underlying cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError. The cause may be nil.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError builds an ErrNotFound-wrapping error for the given resource.
func NewNotFoundError(resource, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
}

// NewConflictError builds an ErrConflict-wrapping error.
func NewConflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NewValidationError builds an ErrValidation-wrapping error.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err is a business rule failure that must not be retried.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrDuplicate)
}

// AsTransient wraps infrastructure errors with ErrTransient, leaving domain errors untouched.
func AsTransient(err error) error {
	if err == nil || IsDomainError(err) || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
