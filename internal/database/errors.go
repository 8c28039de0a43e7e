package database

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEmbedding is returned for embeddings of inconsistent length
	// or with non-finite components.
	ErrMalformedEmbedding = errors.New("malformed embedding")

	// ErrNotFound is returned by direct single-entity lookups.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for out-of-range thresholds and limits.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyIngested is returned when a (file, frame) pair is inserted twice.
	ErrAlreadyIngested = errors.New("file frame already ingested")
)

// StorageError wraps a failure reported by the persistence engine.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError for the given operation. Nil stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err originates from the persistence engine.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Malformed returns an ErrMalformedEmbedding with context.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedEmbedding, fmt.Sprintf(format, args...))
}

// Invalid returns an ErrInvalidArgument with context.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
