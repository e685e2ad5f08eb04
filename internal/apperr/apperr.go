// Package apperr defines the error categories the aidetector CLI reports.
//
// Error taxonomy
//
//	UserError    – caused by missing or invalid user input (unsupported media
//	               type, oversized file, missing path). The CLI prints only the
//	               message. Exit code: 1.
//
//	ErrCancelled – the user aborted the interactive file prompt.
//	               Exit code: 0.
//
// Everything else is a plain Go error and is propagated with
// fmt.Errorf("context: %w", err) wrapping.
package apperr

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user explicitly aborts an interactive
// operation.
var ErrCancelled = errors.New("operation cancelled")

// UserError represents an error caused by invalid or missing user input.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// User creates a UserError with the given message.
func User(msg string) error { return &UserError{Message: msg} }

// Userf creates a formatted UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// IsUser reports whether err is (or wraps) a *UserError.
func IsUser(err error) bool {
	var u *UserError
	return errors.As(err, &u)
}
