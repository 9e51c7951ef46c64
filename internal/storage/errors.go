package storage

import "fmt"

// ValidationError reports malformed input: a missing or double location
// source, a reorder list that is not a permutation, an out-of-range
// position. The operation that produced it had no effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Message)
}

// Invalidf builds a ValidationError from a format string.
func Invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a referenced trip, stop, or timeline entry
// does not exist. The operation that produced it had no effect.
type NotFoundError struct {
	Resource string
	ID       int32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}
