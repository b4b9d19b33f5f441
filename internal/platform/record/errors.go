package record

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("record not found")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return "Missing required field: " + e.Field
	}
	return fmt.Sprintf("Invalid value for field %s: %s", e.Field, e.Reason)
}

// OperationError hides a storage failure behind a fixed message. The cause
// is kept for logging and errors.Is but never shown to clients.
type OperationError struct {
	Entity string
	Op     string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("Failed to %s %s record", e.Op, e.Entity)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
