package service

import (
	"fmt"

	"github.com/ignatij/apipulse/pkg/storage"
	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized means the caller could not be identified.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller is identified but does not own the target.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound aliases the storage sentinel so callers need only this package.
	ErrNotFound = storage.ErrNotFound
)

// ValidationError reports malformed input. Field names the offending input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err (or anything it wraps) is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
