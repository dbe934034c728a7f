package sigthread

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dshills/framehook/internal/scoped"
)

// Launcher starts workers with the control signals blocked.
type Launcher struct {
	signals []syscall.Signal
	logger  zerolog.Logger

	wg       sync.WaitGroup
	degraded atomic.Bool
	launched atomic.Int64
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithSignals replaces the blocked signal set.
func WithSignals(sigs ...syscall.Signal) Option {
	return func(l *Launcher) {
		l.signals = append([]syscall.Signal(nil), sigs...)
	}
}

// New creates a launcher blocking ControlSignals.
func New(logger zerolog.Logger, opts ...Option) *Launcher {
	l := &Launcher{
		signals: append([]syscall.Signal(nil), ControlSignals...),
		logger:  logger.With().Str("component", "sigthread").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Signals returns the blocked signal set.
func (l *Launcher) Signals() []syscall.Signal {
	return append([]syscall.Signal(nil), l.signals...)
}

// Degraded reports whether a launch fell back to a plain start.
func (l *Launcher) Degraded() bool {
	return l.degraded.Load()
}

// Launched returns the number of workers started.
func (l *Launcher) Launched() int64 {
	return l.launched.Load()
}

// Go starts fn on a new OS thread with the launcher's signals blocked.
//
// Go returns once the worker's mask is in place, before fn runs to
// completion. If the mask cannot be applied in the worker the error is
// returned and fn never runs. The calling thread's mask is restored on every
// path.
func (l *Launcher) Go(name string, fn func() error) (*Thread, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}

	t := newThread(name)
	ready := make(chan error, 1)

	err := scoped.Do(l.blockCaller, func() error {
		l.wg.Add(1)
		go l.run(t, l.signals, ready, fn)
		return <-ready
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrUnsupported):
		if !l.degraded.Swap(true) {
			l.logger.Debug().Msg("signal masks unsupported, starting workers without them")
		}
		l.wg.Add(1)
		go l.run(t, nil, ready, fn)
		<-ready
	default:
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	l.launched.Add(1)
	l.logger.Debug().Str("thread", name).Msg("worker started")
	return t, nil
}

// Wait blocks until every worker started by l has returned.
func (l *Launcher) Wait() {
	l.wg.Wait()
}

// blockCaller pins the calling goroutine and blocks the signal set on its
// thread until the returned restore runs.
func (l *Launcher) blockCaller() (scoped.Restore, error) {
	runtime.LockOSThread()
	restore, err := blockSignals(l.signals)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return func() error {
		defer runtime.UnlockOSThread()
		return restore()
	}, nil
}

func (l *Launcher) run(t *Thread, sigs []syscall.Signal, ready chan<- error, fn func() error) {
	defer l.wg.Done()
	defer close(t.done)

	if sigs != nil {
		// Never unlocked: the thread exits with the goroutine.
		runtime.LockOSThread()
		if _, err := blockSignals(sigs); err != nil {
			t.err = err
			ready <- err
			return
		}
	}
	ready <- nil

	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("%w: %s: %v", ErrPanic, t.name, r)
			l.logger.Error().Str("thread", t.name).Interface("panic", r).Msg("worker panicked")
		}
	}()
	t.err = fn()
}

// Thread is a running worker.
type Thread struct {
	name string
	done chan struct{}
	err  error
}

func newThread(name string) *Thread {
	return &Thread{name: name, done: make(chan struct{})}
}

// Name returns the worker name.
func (t *Thread) Name() string { return t.name }

// Done is closed when the worker returns.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Wait blocks until the worker returns and reports its error.
func (t *Thread) Wait() error {
	<-t.done
	return t.err
}
