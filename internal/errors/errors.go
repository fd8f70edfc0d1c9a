// Package errors provides the domain error taxonomy shared by every module.
// Use cases return these sentinels (usually wrapped with context) and the
// HTTP layer maps them to status codes; infrastructure details never leak
// past a Wrap boundary.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across all domain modules.
var (
	// ErrNotFound indicates the entity does not exist or belongs to another
	// tenant. The two cases are deliberately indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a clash with existing data: duplicate role name,
	// duplicate assignment, or a delete blocked by live references.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates malformed or unrecognized input, including
	// unknown permission and status values rejected at the boundary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates a failed credential, a missing permission,
	// or an inactive/expired/revoked key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an attempted mutation of a system role.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates admission was denied by the sliding-window
	// rate limiter before the protected operation ran.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates an infrastructure failure (store unreachable).
	// Not retried inside this core; retry policy belongs to the caller.
	ErrUnavailable = errors.New("unavailable")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap adds context to an error while preserving the error chain.
// Returns nil when err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error while preserving the error chain.
// Returns nil when err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
