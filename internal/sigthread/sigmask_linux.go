//go:build linux

package sigthread

import (
	"math/bits"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/dshills/framehook/internal/scoped"
)

// ControlSignals are blocked in every thread started by a Launcher.
var ControlSignals = []syscall.Signal{
	unix.SIGCHLD,
	unix.SIGINT,
	unix.SIGALRM,
	unix.SIGWINCH,
}

// Supported reports whether per-thread signal masks are available.
func Supported() bool { return true }

func sigaddset(set *unix.Sigset_t, sig syscall.Signal) {
	n := uint(sig) - 1
	set.Val[n/bits.UintSize] |= 1 << (n % bits.UintSize)
}

func sigismember(set *unix.Sigset_t, sig syscall.Signal) bool {
	n := uint(sig) - 1
	return set.Val[n/bits.UintSize]&(1<<(n%bits.UintSize)) != 0
}

// blockSignals adds sigs to the calling thread's mask and returns the function
// that puts the previous mask back. The caller must be locked to its thread.
func blockSignals(sigs []syscall.Signal) (scoped.Restore, error) {
	var set, old unix.Sigset_t
	for _, s := range sigs {
		sigaddset(&set, s)
	}
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, &old); err != nil {
		return nil, err
	}
	return func() error {
		return unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)
	}, nil
}

// IsBlocked reports whether sig is blocked on the current OS thread. The
// answer is only meaningful when the goroutine is locked to its thread.
func IsBlocked(sig syscall.Signal) (bool, error) {
	var cur unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, nil, &cur); err != nil {
		return false, err
	}
	return sigismember(&cur, sig), nil
}
