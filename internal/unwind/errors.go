package unwind

import (
	"errors"
	"fmt"
)

// Registration errors.
var (
	// ErrDuplicateUnwinder is returned when a list already holds an unwinder
	// with the same name and replacement was not requested.
	ErrDuplicateUnwinder = errors.New("unwinder already registered")

	// ErrNilUnwinder is returned when registering a nil unwinder.
	ErrNilUnwinder = errors.New("unwinder is nil")

	// ErrEmptyName is returned when an unwinder has no name.
	ErrEmptyName = errors.New("unwinder name is empty")
)

// Fault is an error raised by an unwinder while it was being consulted.
// It aborts the resolution that triggered it.
type Fault struct {
	// Unwinder is the name of the failing unwinder.
	Unwinder string
	// Locus is the scope the unwinder was registered in.
	Locus Locus
	// Err is the error the unwinder returned.
	Err error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("unwinder %q (%s) failed: %v", f.Unwinder, f.Locus, f.Err)
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}
