// Package common defines the sentinel errors shared by the bot, the store
// and the backend clients. Callers should use errors.Is to match them.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Backend/client errors.
	ErrService = errors.New("service error")
	ErrNetwork = errors.New("network error")

	// Polling budget exhausted without the operation completing.
	ErrTimeout = errors.New("operation timed out")

	// Local file missing or unreadable.
	ErrFileAccess = errors.New("file access error")

	// Malformed user input (e.g. an email without "@" or ".").
	ErrValidation = errors.New("validation error")
)

// StatusError is a ServiceError carrying the HTTP status a backend replied
// with. It matches common.ErrService via errors.Is.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrService
}

// NewStatusError wraps a non-2xx backend response.
func NewStatusError(op string, status int) error {
	return &StatusError{Op: op, Status: status}
}
