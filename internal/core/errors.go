// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Detail is attached by wrapping with %w; classify with errors.Is or KindOf.
var (
	// Frame decoding errors
	ErrFrameTooShort = errors.New("pcapfix: frame too short")
	ErrTruncated     = errors.New("pcapfix: truncated")

	// Checksum errors
	ErrMissingContext = errors.New("pcapfix: missing network layer context")

	// Pipeline errors
	ErrIOFailure = errors.New("pcapfix: i/o failure")

	// Configuration errors
	ErrConfigInvalid = errors.New("pcapfix: invalid configuration")
)

// ErrorKind is the diagnostic classification of an error.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindTruncated      ErrorKind = "truncated"
	KindMissingContext ErrorKind = "missing_context"
	KindFrameTooShort  ErrorKind = "frame_too_short"
	KindIOFailure      ErrorKind = "io_failure"
	KindUnknown        ErrorKind = "unknown"
)

// KindOf maps an error onto the diagnostic taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTruncated):
		return KindTruncated
	case errors.Is(err, ErrMissingContext):
		return KindMissingContext
	case errors.Is(err, ErrFrameTooShort):
		return KindFrameTooShort
	case errors.Is(err, ErrIOFailure):
		return KindIOFailure
	default:
		return KindUnknown
	}
}

// Fatal reports whether err must abort a normalization run.
func (k ErrorKind) Fatal() bool {
	return k == KindIOFailure
}
