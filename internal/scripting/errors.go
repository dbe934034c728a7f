package scripting

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned when Run is called on a running runtime.
	ErrAlreadyRunning = errors.New("runtime already running")

	// ErrClosed is returned by operations on a closed runtime.
	ErrClosed = errors.New("runtime closed")

	// ErrWatchDisabled is returned by Watch when no extension root is set.
	ErrWatchDisabled = errors.New("no extension directory to watch")
)

// InitError is a failure while assembling the runtime.
type InitError struct {
	Component string
	Err       error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}
