package extension

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	extlua "github.com/dshills/framehook/internal/extension/lua"
)

const (
	// SourceExt is the extension file suffix.
	SourceExt = ".lua"

	// EntryPoint is the package file that AutoLoad skips.
	EntryPoint = "init.lua"

	// IdentityPrefix starts every extension identity.
	IdentityPrefix = "dbg"
)

// DefaultPackages are the package directories scanned when none are given.
var DefaultPackages = []string{"function", "command", "printer", "unwinder"}

// Identity returns the module identity for a file stem in a package.
func Identity(pkg, stem string) string {
	return IdentityPrefix + "." + pkg + "." + stem
}

// ModuleFunc builds the Go-backed module an extension requires. It is called
// once per handle, when the handle's Lua state is created.
type ModuleFunc func(h *Handle) lua.LGFunction

// Loader imports and reloads extensions.
type Loader struct {
	mu sync.Mutex

	fs     FileSystem
	sink   ErrorSink
	logger zerolog.Logger
	output io.Writer
	policy ReloadPolicy

	moduleName string
	module     ModuleFunc

	dirMu sync.RWMutex
	root  string

	path     *SearchPath
	packages []string
	handles  map[string]*Handle
	order    []string
	closed   bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithFileSystem replaces the host filesystem.
func WithFileSystem(fs FileSystem) Option {
	return func(l *Loader) {
		l.fs = fs
	}
}

// WithErrorSink sets where load failures are written.
func WithErrorSink(sink ErrorSink) Option {
	return func(l *Loader) {
		l.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithOutput sets where extension print output goes.
func WithOutput(w io.Writer) Option {
	return func(l *Loader) {
		l.output = w
	}
}

// WithReloadPolicy sets the reload policy.
func WithReloadPolicy(p ReloadPolicy) Option {
	return func(l *Loader) {
		l.policy = p
	}
}

// WithModule makes a Go-backed module available to every extension under
// name.
func WithModule(name string, fn ModuleFunc) Option {
	return func(l *Loader) {
		l.moduleName = name
		l.module = fn
	}
}

// WithSearchPath sets additional require directories searched after the
// extension root.
func WithSearchPath(dirs ...string) Option {
	return func(l *Loader) {
		for _, d := range dirs {
			l.path.Append(d)
		}
	}
}

// NewLoader creates a loader rooted at dir. An empty dir loads nothing until
// SetExtensionDirectory is called.
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{
		fs:       OSFileSystem{},
		sink:     NewWriterSink(os.Stderr),
		logger:   zerolog.Nop(),
		output:   os.Stdout,
		path:     NewSearchPath(),
		packages: append([]string(nil), DefaultPackages...),
		handles:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "extension").Logger()
	if dir != "" {
		l.root = dir
		l.path.Prepend(dir)
	}
	return l
}

// ExtensionDir returns the current extension root.
func (l *Loader) ExtensionDir() string {
	l.dirMu.RLock()
	defer l.dirMu.RUnlock()
	return l.root
}

// SearchPath returns the require search path.
func (l *Loader) SearchPath() *SearchPath {
	return l.path
}

// Packages returns the packages of the last AutoLoad.
func (l *Loader) Packages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.packages...)
}

// Policy returns the reload policy.
func (l *Loader) Policy() ReloadPolicy {
	return l.policy
}

// AutoLoad imports or reloads every extension file of packages, in order.
//
// Per-file failures are written to the error sink, logged, and collected in
// the report; they never make AutoLoad fail. The only error returned is the
// context's, when it is cancelled between files.
func (l *Loader) AutoLoad(ctx context.Context, packages []string) (*Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoaderClosed
	}
	l.packages = append([]string(nil), packages...)
	return l.autoLoad(ctx)
}

// Reload runs AutoLoad again over the packages of the last pass.
func (l *Loader) Reload(ctx context.Context) (*Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoaderClosed
	}
	return l.autoLoad(ctx)
}

// SetExtensionDirectory moves the extension root to dir and reloads.
//
// The old root is removed from the search path (it is not an error if it is
// already gone), dir is put at the front, every live extension sees the new
// extension_dir on its core module, and AutoLoad runs over the same packages.
func (l *Loader) SetExtensionDirectory(ctx context.Context, dir string) (*Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoaderClosed
	}

	old := l.ExtensionDir()
	if old != "" && !l.path.Remove(old) {
		l.logger.Debug().Str("dir", old).Msg("previous extension dir was not on the search path")
	}
	l.path.Prepend(dir)

	l.dirMu.Lock()
	l.root = dir
	l.dirMu.Unlock()

	if l.moduleName != "" {
		for _, id := range l.order {
			l.handles[id].lua.SetModuleField(l.moduleName, "extension_dir", lua.LString(dir))
		}
	}

	l.logger.Info().Str("old", old).Str("dir", dir).Msg("extension directory changed")
	return l.autoLoad(ctx)
}

func (l *Loader) autoLoad(ctx context.Context) (*Report, error) {
	report := newReport(l.packages)
	root := l.ExtensionDir()

	defer func() {
		report.Finished = time.Now()
		l.logger.Info().
			Str("run", report.Run.String()).
			Int("loaded", len(report.Loaded)).
			Int("reloaded", len(report.Reloaded)).
			Int("failed", len(report.Failed)).
			Dur("elapsed", report.Finished.Sub(report.Started)).
			Msg("auto-load finished")
	}()

	if root == "" {
		return report, nil
	}

	for _, pkg := range l.packages {
		dir := filepath.Join(root, pkg)
		if !l.fs.IsDir(dir) {
			continue
		}
		names, err := l.fs.ReadDir(dir)
		if err != nil {
			l.fail(report, &LoadFault{Identity: IdentityPrefix + "." + pkg, Path: dir, Err: err})
			continue
		}
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			stem, ok := sourceStem(name)
			if !ok {
				continue
			}
			l.loadFile(report, pkg, stem, filepath.Join(dir, name))
		}
	}
	return report, nil
}

// sourceStem returns the module stem of an extension file name.
func sourceStem(name string) (string, bool) {
	if name == EntryPoint || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, SourceExt) {
		return "", false
	}
	stem := strings.TrimSuffix(name, SourceExt)
	if stem == "" || strings.Contains(stem, ".") {
		return "", false
	}
	return stem, true
}

func (l *Loader) loadFile(report *Report, pkg, stem, path string) {
	identity := Identity(pkg, stem)
	h, exists := l.handles[identity]

	src, err := l.fs.ReadFile(path)
	if err != nil {
		l.fail(report, &LoadFault{Identity: identity, Path: path, Err: err})
		return
	}

	if !exists {
		h = l.newHandle(identity, pkg, path)
		if fault := l.execute(h, path, src); fault != nil {
			h.close()
			l.fail(report, fault)
			return
		}
		l.handles[identity] = h
		l.order = append(l.order, identity)
		report.Loaded = append(report.Loaded, identity)
		l.logger.Debug().Str("identity", identity).Str("path", path).Msg("extension loaded")
		return
	}

	switch l.policy {
	case ReloadAccumulate:
		n := len(h.Registrations())
		report.Carried += n
		l.logger.Debug().Str("identity", identity).Int("carried", n).Msg("reloading, keeping registrations")
	default:
		n := h.teardown()
		report.TornDown += n
		l.logger.Debug().Str("identity", identity).Int("torn_down", n).Msg("reloading, registrations removed")
	}

	if fault := l.execute(h, path, src); fault != nil {
		l.fail(report, fault)
		return
	}
	report.Reloaded = append(report.Reloaded, identity)
}

func (l *Loader) newHandle(identity, pkg, path string) *Handle {
	h := &Handle{
		identity: identity,
		pkg:      pkg,
		path:     path,
		loader:   l,
	}

	opts := []extlua.StateOption{
		extlua.WithSearchPath(l.path.Dirs),
		extlua.WithOutput(l.output),
	}
	if l.module != nil {
		opts = append(opts, extlua.WithPreload(l.moduleName, l.module(h)))
	}
	h.lua = extlua.NewState(opts...)
	return h
}

func (l *Loader) execute(h *Handle, path string, src []byte) *LoadFault {
	gen := h.begin(path)
	err := h.lua.DoSource(src, path)
	h.finish(err)
	if err != nil {
		return &LoadFault{Identity: h.identity, Path: path, Generation: gen, Err: err}
	}
	return nil
}

func (l *Loader) fail(report *Report, fault *LoadFault) {
	report.Failed = append(report.Failed, fault)
	l.sink.WriteError(fault.Error() + "\n")

	ev := l.logger.Warn().
		Err(fault.Err).
		Str("identity", fault.Identity).
		Str("path", fault.Path)
	if fault.Generation != uuid.Nil {
		ev = ev.Str("generation", fault.Generation.String())
	}
	ev.Msg("extension failed to load")
}

// Handle returns the handle for identity.
func (l *Loader) Handle(identity string) (*Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.handles[identity]
	return h, ok
}

// Handles returns every handle in first-load order.
func (l *Loader) Handles() []*Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Handle, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.handles[id])
	}
	return out
}

// Unload tears down an identity's registrations and forgets it. A later
// AutoLoad imports it fresh.
func (l *Loader) Unload(identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.handles[identity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	n := h.close()
	delete(l.handles, identity)
	for i, id := range l.order {
		if id == identity {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.logger.Debug().Str("identity", identity).Int("torn_down", n).Msg("extension unloaded")
	return nil
}

// Close unloads every extension.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	for i := len(l.order) - 1; i >= 0; i-- {
		l.handles[l.order[i]].close()
	}
	l.handles = make(map[string]*Handle)
	l.order = nil
	l.closed = true
	return nil
}
