package lua

import "errors"

var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrModuleNotFound is returned by require when no loader serves a name.
	ErrModuleNotFound = errors.New("lua module not found")
)
