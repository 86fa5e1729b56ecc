package telemetry

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSerial    = errors.New("telemetry: serial is required")
	ErrMissingMachineID = errors.New("telemetry: machineId is required")
)

// ValidationError reports a malformed or missing required field. The
// request or entry carrying it is rejected before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("telemetry: invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an explicitly referenced entity that does not
// exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("telemetry: %s %s does not exist", e.Entity, e.ID)
}

// StorageError wraps a backend failure. The immediate caller decides
// retry or drop policy.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("telemetry: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nferr *NotFoundError
	return errors.As(err, &nferr)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var serr *StorageError
	return errors.As(err, &serr)
}
