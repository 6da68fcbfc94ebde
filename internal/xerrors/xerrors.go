// Package xerrors classifies failures the way spec §7 of the system
// does, so the query and build layers can map a returned error to the
// disposition (HTTP status, retry, operator action) without string
// matching.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind is one entry in the error taxonomy.
type Kind int

const (
	// KindInputMalformed covers a bad URL or bad query argument.
	KindInputMalformed Kind = iota
	// KindNotFound covers an absent domain, dataset, or (domain,dataset) pair.
	KindNotFound
	// KindVersionMissing covers a manifest whose current_version pointer is invalid.
	KindVersionMissing
	// KindArtifactCorrupt covers a magic mismatch, size mismatch, or decompression failure.
	KindArtifactCorrupt
	// KindTransientIO covers a failed range read, retriable with backoff.
	KindTransientIO
	// KindOverCapacity covers a buffer ceiling or a clamped limit.
	KindOverCapacity
)

func (k Kind) String() string {
	switch k {
	case KindInputMalformed:
		return "input_malformed"
	case KindNotFound:
		return "not_found"
	case KindVersionMissing:
		return "version_missing"
	case KindArtifactCorrupt:
		return "artifact_corrupt"
	case KindTransientIO:
		return "transient_io"
	case KindOverCapacity:
		return "over_capacity"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can classify it.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a *Error with no cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a *Error around cause.
func Wrap(kind Kind, msg string, cause error) error {
	if cause == nil {
		return New(kind, msg)
	}
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// As extracts the Kind of err, defaulting to KindTransientIO when err
// carries no Kind of its own (an unclassified internal failure is
// treated as retriable rather than silently swallowed).
func As(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransientIO
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
