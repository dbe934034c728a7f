package scripting

import (
	"context"
	"path/filepath"

	"github.com/dshills/framehook/internal/extension"
	"github.com/dshills/framehook/internal/extension/watch"
)

// Run is the control loop. It serves Do requests and watcher reloads until
// ctx is cancelled. Only one Run may be active.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	stopped := make(chan struct{})
	r.mu.Lock()
	r.stopped = stopped
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.stopped = nil
		r.mu.Unlock()
		close(stopped)
		r.running.Store(false)
	}()

	for {
		// The watcher is replaced when the extension root moves, so its
		// channel is looked up on every pass.
		reloads := r.watchRequests()

		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-r.control:
			req.done <- req.fn(ctx)

		case w, ok := <-reloads:
			if !ok {
				continue
			}
			r.logger.Info().Strs("paths", w.Paths).Msg("extension change detected")
			if _, err := r.loader.Reload(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("reload failed")
			}
		}
	}
}

// watchRequests returns the current watcher's requests, or nil.
func (r *Runtime) watchRequests() <-chan watch.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Requests()
}

// Do runs fn on the control loop when it is running, or inline otherwise.
func (r *Runtime) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped == nil {
		return fn(ctx)
	}

	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case r.control <- req:
	case <-stopped:
		return fn(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load auto-loads the configured packages.
func (r *Runtime) Load(ctx context.Context) (*extension.Report, error) {
	var report *extension.Report
	err := r.Do(ctx, func(ctx context.Context) error {
		var err error
		report, err = r.loader.AutoLoad(ctx, r.opts.Packages)
		return err
	})
	return report, err
}

// Reload re-runs the last auto-load.
func (r *Runtime) Reload(ctx context.Context) (*extension.Report, error) {
	var report *extension.Report
	err := r.Do(ctx, func(ctx context.Context) error {
		var err error
		report, err = r.loader.Reload(ctx)
		return err
	})
	return report, err
}

// SetExtensionDirectory moves the extension root and reloads.
func (r *Runtime) SetExtensionDirectory(ctx context.Context, dir string) (*extension.Report, error) {
	var report *extension.Report
	err := r.Do(ctx, func(ctx context.Context) error {
		var err error
		report, err = r.loader.SetExtensionDirectory(ctx, dir)
		if err != nil {
			return err
		}
		return r.rewatch()
	})
	return report, err
}

// rewatch moves a running watcher to the current extension root.
func (r *Runtime) rewatch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.watcher
	if old == nil || r.closed {
		return nil
	}
	root := r.loader.ExtensionDir()
	if old.Root() == filepath.Clean(root) {
		return nil
	}
	r.watcher = nil
	if err := old.Close(); err != nil {
		r.logger.Warn().Err(err).Str("root", old.Root()).Msg("closing watcher")
	}
	w, err := r.startWatcher(root)
	if err != nil {
		return err
	}
	r.watcher = w
	return nil
}

// Watch starts watching the extension root. Changes reach the loader
// through Run. A watcher started while Run is blocked is picked up on the
// loop's next pass. SetExtensionDirectory moves the watcher to the new root.
func (r *Runtime) Watch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.watcher != nil {
		return nil
	}
	w, err := r.startWatcher(r.loader.ExtensionDir())
	if err != nil {
		return err
	}
	r.watcher = w
	return nil
}

// startWatcher starts a watcher on root. r.mu must be held.
func (r *Runtime) startWatcher(root string) (*watch.Watcher, error) {
	if root == "" {
		return nil, ErrWatchDisabled
	}
	w, err := watch.New(root, r.opts.Packages,
		watch.WithDebounce(r.opts.Debounce),
		watch.WithLauncher(r.launcher),
		watch.WithLogger(r.opts.Logger),
	)
	if err != nil {
		return nil, &InitError{Component: "watcher", Err: err}
	}
	if err := w.Start(); err != nil {
		_ = w.Close()
		return nil, &InitError{Component: "watcher", Err: err}
	}
	return w, nil
}
