package session

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for any operation against an unknown session code.
var ErrNotFound = errors.New("session not found")

// ErrLockTimeout is returned when a session's settlement gate could not be
// acquired within the configured bound. It signals contention, not corruption,
// and is safe to retry.
var ErrLockTimeout = errors.New("timed out waiting for session lock")

// ValidationError rejects a malformed create request or win declaration.
// The targeted session is left unchanged.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
