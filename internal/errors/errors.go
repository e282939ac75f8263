// internal/errors/errors.go
package errors

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Sentinel categories for everything the engines can surface. Callers branch
// with errors.Is; the concrete message rides along via wrapping.
var (
	// ErrValidation: rejected before any write, never retried automatically.
	ErrValidation = errors.New("validation failed")
	// ErrConflict: concurrent writers raced on the same pair/row. Usually
	// resolved internally by re-query-and-reuse; surfaces only when it can't be.
	ErrConflict = errors.New("conflict")
	// ErrRateLimited: daily swipe quota exhausted. Branch, don't retry.
	ErrRateLimited = errors.New("rate limit reached")
	// ErrTransient: infra trouble talking to the database or an RPC; safe to
	// retry reads, never retried automatically for writes.
	ErrTransient = errors.New("transient failure")
	// ErrNotFound: an expected related record is missing.
	ErrNotFound = errors.New("not found")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func RateLimited(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRateLimited, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Map converts repo/infra errors into the taxonomy above. Keeps the service
// layer clean by centralizing the mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrTransient),
		errors.Is(err, ErrNotFound):
		// already categorized
		return err

	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTransient, err)

	default:
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
}

// Is re-exports errors.Is so call sites importing this package with an alias
// don't need a second import of stdlib errors.
func Is(err, target error) bool { return errors.Is(err, target) }
