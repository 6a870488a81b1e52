// Package errors provides error handling for FINQ.
//
// This package re-exports github.com/cockroachdb/errors so every package gets
// stack traces, wrapping and user-facing hints from one import:
//
//	if err := parse(row); err != nil {
//	    return errors.Wrapf(err, "row %d", i)
//	}
//
//	return errors.WithHint(err, "quarter numbers run from 1 to 4")
//
// Domain failures are expressed as sentinels below. Wrap them to add context
// and test for them with errors.Is.
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
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors shared across FINQ.
var (
	// ErrMalformedPeriod indicates a period expression outside the resolver grammar
	ErrMalformedPeriod = New("malformed period")

	// ErrUnsupportedFormat indicates no source adapter matches an input file
	ErrUnsupportedFormat = New("unsupported dataset format")

	// ErrMissingField indicates a source row lacks a required field
	ErrMissingField = New("missing required field")

	// ErrInvalidAmount indicates a numeric source field could not be parsed
	ErrInvalidAmount = New("invalid amount")

	// ErrNoSQL indicates the language model reply carried no SQL block
	ErrNoSQL = New("model did not return a SQL block")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = New("service unavailable")

	// ErrConflict indicates a resource conflict (e.g., duplicate key)
	ErrConflict = New("resource conflict")
)

// IsMalformedPeriod checks if an error is or wraps ErrMalformedPeriod
func IsMalformedPeriod(err error) bool {
	return err != nil && Is(err, ErrMalformedPeriod)
}

// IsUnsupportedFormat checks if an error is or wraps ErrUnsupportedFormat
func IsUnsupportedFormat(err error) bool {
	return err != nil && Is(err, ErrUnsupportedFormat)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsInputError reports whether err was caused by bad caller input rather
// than by FINQ or its collaborators.
func IsInputError(err error) bool {
	return err != nil && IsAny(err,
		ErrMalformedPeriod,
		ErrUnsupportedFormat,
		ErrMissingField,
		ErrInvalidAmount,
		ErrInvalidRequest,
	)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidRequest, format, args...)
}
