package sheets

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the job, cutlist, material or recut does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOutOfRange means a sheet index is outside the current sequence.
	ErrOutOfRange = errors.New("sheet index out of range")
	// ErrInvalidArgument covers unknown statuses and counts outside [1, MaxSheets].
	ErrInvalidArgument = errors.New("invalid argument")
)

// StorageError wraps a persistence failure of op.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// classify keeps domain errors as they are, maps sql.ErrNoRows to
// ErrNotFound and wraps everything else as a StorageError.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOutOfRange), errors.Is(err, ErrInvalidArgument):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return &StorageError{Op: op, Err: err}
	}
}

// Kind names the error class for API responses and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "storage_failure"
	}
}
