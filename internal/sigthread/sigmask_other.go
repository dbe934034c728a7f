//go:build !linux

package sigthread

import (
	"syscall"

	"github.com/dshills/framehook/internal/scoped"
)

// ControlSignals is empty where signal masks cannot be controlled per thread.
var ControlSignals []syscall.Signal

// Supported reports whether per-thread signal masks are available.
func Supported() bool { return false }

func blockSignals([]syscall.Signal) (scoped.Restore, error) {
	return nil, ErrUnsupported
}

// IsBlocked always fails with ErrUnsupported.
func IsBlocked(syscall.Signal) (bool, error) {
	return false, ErrUnsupported
}
