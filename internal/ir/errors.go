package ir

import (
	"errors"
	"fmt"
)

// Error is a structural error raised by the versioning core.
//
// Structural errors indicate a programming bug or storage corruption and
// are never retried. Error carries structured fields for diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Nid identifies the affected chronicle, when known.
	Nid Nid

	// StampSequence identifies the affected stamp, when known.
	StampSequence int32

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes structural errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedFormat indicates a header format-version mismatch.
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// ErrCodeCorruptRecord indicates bytes that cannot form a valid chronicle.
	ErrCodeCorruptRecord ErrorCode = "CORRUPT_RECORD"

	// ErrCodeUnmergeable indicates two blobs that cannot be merged.
	ErrCodeUnmergeable ErrorCode = "UNMERGEABLE"

	// ErrCodeIllegalState indicates a mutation of a committed version.
	ErrCodeIllegalState ErrorCode = "ILLEGAL_STATE"

	// ErrCodeUnknownStamp indicates a stamp sequence the registry never issued.
	ErrCodeUnknownStamp ErrorCode = "UNKNOWN_STAMP"

	// ErrCodeUnknownIdentifier indicates a UUID or nid with no mapping.
	ErrCodeUnknownIdentifier ErrorCode = "UNKNOWN_IDENTIFIER"

	// ErrCodeIdentifierConflict indicates UUIDs already bound to different nids.
	ErrCodeIdentifierConflict ErrorCode = "IDENTIFIER_CONFLICT"

	// ErrCodePathCycle indicates a path origin that would close a cycle.
	ErrCodePathCycle ErrorCode = "PATH_CYCLE"

	// ErrCodeBufferUnderflow indicates a read past the buffer limit.
	ErrCodeBufferUnderflow ErrorCode = "BUFFER_UNDERFLOW"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Nid != 0 {
		msg += fmt.Sprintf(" (nid=%d)", e.Nid)
	}
	if e.StampSequence != 0 {
		msg += fmt.Sprintf(" (stamp=%d)", e.StampSequence)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNid returns e annotated with the chronicle nid.
func (e *Error) WithNid(nid Nid) *Error {
	e.Nid = nid
	return e
}

// WithStamp returns e annotated with the stamp sequence.
func (e *Error) WithStamp(seq int32) *Error {
	e.StampSequence = seq
	return e
}

// HasCode reports whether err wraps an *Error with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsUnsupportedFormat reports whether err is a format-version mismatch.
func IsUnsupportedFormat(err error) bool { return HasCode(err, ErrCodeUnsupportedFormat) }

// IsCorruptRecord reports whether err is a corrupt-record error.
func IsCorruptRecord(err error) bool { return HasCode(err, ErrCodeCorruptRecord) }

// IsUnmergeable reports whether err is a merge failure.
func IsUnmergeable(err error) bool { return HasCode(err, ErrCodeUnmergeable) }

// IsIllegalState reports whether err is an illegal version mutation.
func IsIllegalState(err error) bool { return HasCode(err, ErrCodeIllegalState) }

// IsUnknownStamp reports whether err is an unresolvable stamp sequence.
func IsUnknownStamp(err error) bool { return HasCode(err, ErrCodeUnknownStamp) }

// IsUnknownIdentifier reports whether err is a missing UUID or nid mapping.
func IsUnknownIdentifier(err error) bool { return HasCode(err, ErrCodeUnknownIdentifier) }

// IsPathCycle reports whether err is a rejected path origin.
func IsPathCycle(err error) bool { return HasCode(err, ErrCodePathCycle) }
