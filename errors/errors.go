// Package errors provides error handling for newsdesk.
//
// This package re-exports github.com/cockroachdb/errors, providing stack traces,
// wrapping, user-facing hints and details, and error marks so that domain errors
// can be matched against the sentinels below with errors.Is.
//
// Usage:
//
//	if err := store.Update(ctx, id, patch); err != nil {
//	    return errors.Wrapf(err, "failed to update article %s", id)
//	}
//
//	// Domain error that also matches ErrInvalidRequest
//	return errors.WrapAs(ErrInvalidFilter, errors.ErrInvalidRequest, "unknown status %q", s)
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint       = crdb.WithHint
	WithHintf      = crdb.WithHintf
	WithDetail     = crdb.WithDetail
	WithDetailf    = crdb.WithDetailf
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Error inspection and marking
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	Mark          = crdb.Mark
	CombineErrors = crdb.CombineErrors
)

// Common sentinel errors.
// Wrap these, or use WrapAs on a domain sentinel, to keep errors.Is working across layers.
// Never Mark a sentinel itself: a marked sentinel becomes equivalent to its mark.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrUnauthorized indicates the caller presented no verified identity
	ErrUnauthorized = New("unauthorized")

	// ErrForbidden indicates the caller is known but lacks the required role
	ErrForbidden = New("forbidden")

	// ErrConflict indicates a state transition lost a race or is not allowed
	ErrConflict = New("resource conflict")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// WrapAs wraps a domain sentinel and marks the result with kind.
// errors.Is then matches both, while the two sentinels stay distinct.
func WrapAs(sentinel, kind error, format string, args ...interface{}) error {
	return Mark(Wrapf(sentinel, format, args...), kind)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidRequest, format, args...)
}
