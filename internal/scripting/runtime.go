// Package scripting assembles the extension-dispatch core into one runtime.
//
// A Runtime owns the process-wide state: the global unwinder list, the
// program spaces, the parameter store, the command and printer registries,
// the extension loader, the signal-safe launcher and, optionally, a
// directory watcher. Reloads are serialized through the control loop
// started by Run.
package scripting

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/framehook/internal/command"
	"github.com/dshills/framehook/internal/extension"
	"github.com/dshills/framehook/internal/extension/api"
	"github.com/dshills/framehook/internal/extension/watch"
	"github.com/dshills/framehook/internal/param"
	"github.com/dshills/framehook/internal/printer"
	"github.com/dshills/framehook/internal/progspace"
	"github.com/dshills/framehook/internal/sigthread"
	"github.com/dshills/framehook/internal/unwind"
)

// Options configures a Runtime.
type Options struct {
	// ExtensionDir is the extension root. Empty loads nothing until
	// SetExtensionDirectory.
	ExtensionDir string

	// Packages are the package directories auto-loaded, in order. Nil
	// means extension.DefaultPackages.
	Packages []string

	// SearchPath lists extra require directories.
	SearchPath []string

	// ReloadPolicy decides what reloading does to earlier registrations.
	ReloadPolicy extension.ReloadPolicy

	// Debounce is the watcher's quiet period.
	Debounce time.Duration

	// Stdout and Stderr receive extension output and load diagnostics.
	Stdout io.Writer
	Stderr io.Writer

	Logger zerolog.Logger
}

// Runtime is the extension-dispatch core.
type Runtime struct {
	mu sync.Mutex

	global   *unwind.List
	spaces   *progspace.Set
	params   *param.Store
	commands *command.Registry
	printers *printer.Chain
	modules  *api.Registry
	loader   *extension.Loader
	launcher *sigthread.Launcher
	resolver *unwind.Resolver
	watcher  *watch.Watcher

	opts   Options
	stdout io.Writer
	stderr io.Writer
	logger zerolog.Logger

	control chan request
	stopped chan struct{}
	running atomic.Bool
	closed  bool
}

// request is work handed to the control loop.
type request struct {
	fn   func(ctx context.Context) error
	done chan error
}

// New assembles a runtime. Extensions are not loaded until Load.
func New(opts Options) *Runtime {
	r := &Runtime{
		global:   unwind.NewList(),
		spaces:   progspace.NewSet(),
		params:   param.NewStoreWithDefaults(),
		commands: command.NewRegistry(),
		printers: printer.NewChain(),
		opts:     opts,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		logger:   opts.Logger.With().Str("component", "scripting").Logger(),
		control:  make(chan request),
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}
	if opts.Packages == nil {
		r.opts.Packages = append([]string(nil), extension.DefaultPackages...)
	}

	r.launcher = sigthread.New(opts.Logger)
	r.resolver = unwind.NewResolver(r.spaces, r.global, opts.Logger)
	r.modules = api.NewRegistry(r)
	r.loader = extension.NewLoader(opts.ExtensionDir,
		extension.WithModule(api.ModuleName, r.modules.Loader()),
		extension.WithErrorSink(extension.NewWriterSink(r.stderr)),
		extension.WithOutput(r.stdout),
		extension.WithLogger(opts.Logger),
		extension.WithReloadPolicy(opts.ReloadPolicy),
		extension.WithSearchPath(opts.SearchPath...),
	)
	return r
}

// GlobalUnwinders returns the process-wide unwinder list.
func (r *Runtime) GlobalUnwinders() *unwind.List { return r.global }

// ProgramSpaces returns the program spaces.
func (r *Runtime) ProgramSpaces() *progspace.Set { return r.spaces }

// Parameters returns the parameter backend.
func (r *Runtime) Parameters() param.Backend { return r.params }

// Store returns the parameter store.
func (r *Runtime) Store() *param.Store { return r.params }

// Commands returns the command registry.
func (r *Runtime) Commands() *command.Registry { return r.commands }

// Printers returns the pretty-printer chain.
func (r *Runtime) Printers() *printer.Chain { return r.printers }

// Stdout returns where extension output goes.
func (r *Runtime) Stdout() io.Writer { return r.stdout }

// Stderr returns where diagnostics go.
func (r *Runtime) Stderr() io.Writer { return r.stderr }

// Loader returns the extension loader.
func (r *Runtime) Loader() *extension.Loader { return r.loader }

// Launcher returns the signal-safe launcher.
func (r *Runtime) Launcher() *sigthread.Launcher { return r.launcher }

// Resolver returns the unwinder resolver.
func (r *Runtime) Resolver() *unwind.Resolver { return r.resolver }

var _ api.Host = (*Runtime)(nil)

// AddObjfile loads the ELF image at path, relocated by base, into the
// current program space.
func (r *Runtime) AddObjfile(path string, base uint64) (*progspace.Objfile, error) {
	o, err := progspace.OpenELF(path, base)
	if err != nil {
		return nil, err
	}
	if err := r.spaces.Current().AddObjfile(o); err != nil {
		return nil, err
	}
	r.logger.Debug().Str("objfile", path).Uint64("base", base).Bool("shared", o.IsSharedLibrary()).Msg("objfile added")
	return o, nil
}

// SetParameters applies initial parameter values.
func (r *Runtime) SetParameters(values map[string]any) error {
	for name, v := range values {
		if err := param.Set(r.params, name, v); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the watcher, unloads every extension and waits for launched
// threads.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	var werr error
	if w != nil {
		werr = w.Close()
	}
	lerr := r.loader.Close()
	r.launcher.Wait()
	r.logger.Debug().Int64("threads", r.launcher.Launched()).Msg("runtime closed")
	if werr != nil {
		return werr
	}
	return lerr
}
