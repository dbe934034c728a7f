// Package watch turns edits under the extension root into reload requests.
//
// The watcher observes the root and each package directory. Writes, creates,
// removes and renames of extension source files are collected and, once the
// tree has been quiet for the debounce delay, delivered as a single Request.
// The event loop runs on a sigthread worker so the control signals stay with
// the control thread.
package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dshills/framehook/internal/extension"
	"github.com/dshills/framehook/internal/sigthread"
)

// DefaultDebounce is the quiet period before a reload is requested.
const DefaultDebounce = 200 * time.Millisecond

var (
	// ErrClosed is returned by operations on a closed watcher.
	ErrClosed = errors.New("watcher closed")

	// ErrStarted is returned when Start is called twice.
	ErrStarted = errors.New("watcher already started")
)

// Request asks the control loop to reload extensions.
type Request struct {
	// Paths are the changed files, sorted.
	Paths []string
	// At is when the last change was seen.
	At time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithLauncher sets the launcher the event loop is started with.
func WithLauncher(l *sigthread.Launcher) Option {
	return func(w *Watcher) {
		w.launcher = l
	}
}

// Watcher watches an extension root.
type Watcher struct {
	mu sync.Mutex

	fsw      *fsnotify.Watcher
	root     string
	packages []string
	debounce time.Duration
	logger   zerolog.Logger
	launcher *sigthread.Launcher

	requests chan Request
	errs     chan error
	closeCh  chan struct{}
	thread   *sigthread.Thread
	started  bool
	closed   bool
}

// New creates a watcher for the packages under root. Nothing is watched
// until Start.
func New(root string, packages []string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		root:     filepath.Clean(root),
		packages: append([]string(nil), packages...),
		debounce: DefaultDebounce,
		logger:   zerolog.Nop(),
		requests: make(chan Request, 1),
		errs:     make(chan error, 8),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.launcher == nil {
		w.launcher = sigthread.New(w.logger)
	}
	w.logger = w.logger.With().Str("component", "watch").Logger()
	return w, nil
}

// Root returns the watched extension root.
func (w *Watcher) Root() string { return w.root }

// Requests returns the channel reload requests are delivered on. It is
// closed by Close.
func (w *Watcher) Requests() <-chan Request { return w.requests }

// Errors returns watcher errors. Errors are dropped when nobody reads them.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Start adds the root and the existing package directories and starts the
// event loop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.started {
		return ErrStarted
	}
	if err := w.fsw.Add(w.root); err != nil {
		return err
	}
	for _, pkg := range w.packages {
		w.addPackage(filepath.Join(w.root, pkg))
	}

	t, err := w.launcher.Go("extension-watch", w.run)
	if err != nil {
		return err
	}
	w.thread = t
	w.started = true
	w.logger.Info().Str("root", w.root).Strs("packages", w.packages).Msg("watching extensions")
	return nil
}

// WatchedPaths returns the directories being watched.
func (w *Watcher) WatchedPaths() []string {
	paths := w.fsw.WatchList()
	sort.Strings(paths)
	return paths
}

// Close stops the event loop and closes the request channel.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	t := w.thread
	w.mu.Unlock()

	var err error
	if t != nil {
		err = t.Wait()
	}
	close(w.requests)
	return errors.Join(err, w.fsw.Close())
}

func (w *Watcher) addPackage(dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		w.logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch package directory")
	}
}

// run is the event loop. Changes accumulate in pending until the timer
// fires.
func (w *Watcher) run() error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]bool)
	var last time.Time

	for {
		select {
		case <-w.closeCh:
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			pending[ev.Name] = true
			last = time.Now()
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")
			select {
			case w.errs <- err:
			default:
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			req := Request{Paths: make([]string, 0, len(pending)), At: last}
			for p := range pending {
				req.Paths = append(req.Paths, p)
			}
			sort.Strings(req.Paths)
			clear(pending)

			w.logger.Debug().Strs("paths", req.Paths).Msg("reload requested")
			select {
			case w.requests <- req:
			case <-w.closeCh:
				return nil
			}
		}
	}
}

// relevant reports whether ev should trigger a reload. A new package
// directory is added to the watch list and also counts as a change.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}

	if filepath.Dir(ev.Name) == w.root {
		for _, pkg := range w.packages {
			if name != pkg {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.addPackage(ev.Name)
			}
			return true
		}
	}
	return strings.HasSuffix(name, extension.SourceExt)
}
