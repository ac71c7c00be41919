package ranking

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an import failed.
type ErrorKind string

// Import failure kinds. Every kind rolls back the whole batch.
const (
	KindMalformedRecord     ErrorKind = "malformed_record"
	KindConstraintViolation ErrorKind = "constraint_violation"
	KindStorageUnavailable  ErrorKind = "storage_unavailable"
)

// Sentinels matched by errors.Is against an *ImportError of the same kind.
var (
	ErrMalformedRecord     = errors.New("malformed record")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStorageUnavailable  = errors.New("storage unavailable")

	ErrCountryNotFound = errors.New("country not found")
	ErrNoRankings      = errors.New("no rankings for country")
	ErrMovieNotFound   = errors.New("movie not found")
)

// NoIndex marks an ImportError that is not tied to a single record.
const NoIndex = -1

// ImportError is the structured failure returned by a rolled-back import.
type ImportError struct {
	Kind  ErrorKind
	Index int
	Err   error
}

// Error implements error.
func (e *ImportError) Error() string {
	if e.Index == NoIndex {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s at record %d: %v", e.Kind, e.Index, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *ImportError) Is(target error) bool {
	switch target {
	case ErrMalformedRecord:
		return e.Kind == KindMalformedRecord
	case ErrConstraintViolation:
		return e.Kind == KindConstraintViolation
	case ErrStorageUnavailable:
		return e.Kind == KindStorageUnavailable
	}
	return false
}

// Malformed builds a malformed-record error for the record at index.
func Malformed(index int, format string, args ...any) *ImportError {
	return &ImportError{Kind: KindMalformedRecord, Index: index, Err: fmt.Errorf(format, args...)}
}

// StorageFailure wraps err as a storage error, keeping constraint violations distinct.
func StorageFailure(index int, err error) *ImportError {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}
	kind := KindStorageUnavailable
	if errors.Is(err, ErrConstraintViolation) {
		kind = KindConstraintViolation
	}
	return &ImportError{Kind: kind, Index: index, Err: err}
}
