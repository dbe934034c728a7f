package sigthread

import "errors"

var (
	// ErrUnsupported reports that the platform has no per-thread signal mask.
	// Launcher.Go never returns it; it falls back to a plain start instead.
	ErrUnsupported = errors.New("per-thread signal masks not supported")

	// ErrPanic wraps a panic raised by a worker function.
	ErrPanic = errors.New("worker panicked")

	// ErrNilFunc is returned when Go is called without a function.
	ErrNilFunc = errors.New("nil worker function")
)
