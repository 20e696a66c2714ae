package fw

import (
	"errors"
	"fmt"
)

var (
	errNotFound     = errors.New("NotFound")
	errConflict     = errors.New("Conflict")
	errInternal     = errors.New("Internal")
	errInvalid      = errors.New("Invalid")
	errPrecondition = errors.New("Precondition")
)

// NotFound creates a new notfound error with a given error message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errNotFound, fmt.Sprintf(format, args...))
}

// IsNotFound checks if an error is a notfound error.
func IsNotFound(e error) bool {
	return errors.Is(e, errNotFound)
}

// Conflict creates a new conflict error with a given error message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errConflict, fmt.Sprintf(format, args...))
}

// IsConflict checks if an error is a conflict error.
func IsConflict(e error) bool {
	return errors.Is(e, errConflict)
}

// Internal creates a new internal error with a given error message and the original error.
func Internal(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", errInternal, fmt.Sprintf(format, args...), err)
}

// IsInternal checks if an error is an internal error.
func IsInternal(e error) bool {
	return errors.Is(e, errInternal)
}

// Invalid creates a new validation error with a given error message.
// It is returned before any side effect has taken place.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalid, fmt.Sprintf(format, args...))
}

// IsInvalid checks if an error is a validation error.
func IsInvalid(e error) bool {
	return errors.Is(e, errInvalid)
}

// Precondition creates a new precondition error with a given error message.
// It signals that an operation was rejected before any dispatch was attempted.
func Precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errPrecondition, fmt.Sprintf(format, args...))
}

// IsPrecondition checks if an error is a precondition error.
func IsPrecondition(e error) bool {
	return errors.Is(e, errPrecondition)
}
