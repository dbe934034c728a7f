package extension

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

// registry is a minimal stand-in for the registries extensions write to.
type registry struct {
	names []string
}

func (r *registry) remove(name string) {
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			return
		}
	}
}

func (r *registry) count(name string) int {
	n := 0
	for _, x := range r.names {
		if x == name {
			n++
		}
	}
	return n
}

// module exposes dbg.register(name) and dbg.extension_dir to extensions.
func (r *registry) module(h *Handle) lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "extension_dir", lua.LString(h.ExtensionDir()))
		L.SetField(mod, "register", L.NewFunction(func(L *lua.LState) int {
			name := L.CheckString(1)
			r.names = append(r.names, name)
			h.Track("test", name, func() { r.remove(name) })
			return 0
		}))
		L.Push(mod)
		return 1
	}
}

type sinkRecorder struct {
	reports []string
}

func (s *sinkRecorder) WriteError(text string) {
	s.reports = append(s.reports, text)
}

func writeExt(t *testing.T, root, pkg, name, src string) {
	t.Helper()
	dir := filepath.Join(root, pkg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestLoader(t *testing.T, root string, opts ...Option) (*Loader, *registry, *sinkRecorder) {
	t.Helper()
	reg := &registry{}
	sink := &sinkRecorder{}
	opts = append([]Option{
		WithErrorSink(sink),
		WithModule("dbg", reg.module),
	}, opts...)
	l := NewLoader(root, opts...)
	t.Cleanup(func() { _ = l.Close() })
	return l, reg, sink
}

const registerSelf = `local dbg = require("dbg")
dbg.register("%s")
`

func ext(name string) string {
	return strings.Replace(registerSelf, "%s", name, 1)
}

func TestAutoLoadIsolatesFailures(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "unwinder", "a.lua", ext("a"))
	writeExt(t, root, "unwinder", "b.lua", `error("b is broken")`)
	writeExt(t, root, "unwinder", "c.lua", ext("c"))

	l, reg, sink := newTestLoader(t, root)

	report, err := l.AutoLoad(context.Background(), []string{"unwinder"})
	if err != nil {
		t.Fatalf("AutoLoad() error = %v", err)
	}

	if got := strings.Join(report.Loaded, ","); got != "dbg.unwinder.a,dbg.unwinder.c" {
		t.Errorf("Loaded = %s, want dbg.unwinder.a,dbg.unwinder.c", got)
	}
	if len(report.Failed) != 1 || report.Failed[0].Identity != "dbg.unwinder.b" {
		t.Fatalf("Failed = %v, want only dbg.unwinder.b", report.Failed)
	}
	if len(sink.reports) != 1 || !strings.Contains(sink.reports[0], "b is broken") {
		t.Errorf("sink reports = %q, want one report for b", sink.reports)
	}
	if reg.count("a") != 1 || reg.count("c") != 1 {
		t.Errorf("registry = %v, want a and c once", reg.names)
	}
	if _, ok := l.Handle("dbg.unwinder.b"); ok {
		t.Error("failed fresh import left a handle behind")
	}
	if report.Err() == nil {
		t.Error("Report.Err() = nil, want the b fault")
	}
	var fault *LoadFault
	if !errors.As(report.Err(), &fault) || fault.Path != filepath.Join(root, "unwinder", "b.lua") {
		t.Errorf("Report.Err() = %v, want a LoadFault for b.lua", report.Err())
	}
}

func TestAutoLoadContinuesAcrossPackages(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "command", "broken.lua", `this is not lua`)
	writeExt(t, root, "printer", "p.lua", ext("p"))

	l, reg, sink := newTestLoader(t, root)

	report, err := l.AutoLoad(context.Background(), []string{"function", "command", "printer"})
	if err != nil {
		t.Fatalf("AutoLoad() error = %v", err)
	}
	if len(report.Loaded) != 1 || report.Loaded[0] != "dbg.printer.p" {
		t.Errorf("Loaded = %v, want [dbg.printer.p]", report.Loaded)
	}
	if len(sink.reports) != 1 {
		t.Errorf("sink reports = %d, want 1", len(sink.reports))
	}
	if reg.count("p") != 1 {
		t.Errorf("registry = %v, want p", reg.names)
	}
}

func TestAutoLoadSkipsEntryPointAndOtherFiles(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "function", "init.lua", `error("entry point must not run")`)
	writeExt(t, root, "function", "README.md", `not code`)
	writeExt(t, root, "function", ".hidden.lua", `error("hidden")`)
	writeExt(t, root, "function", "f.lua", ext("f"))

	l, _, sink := newTestLoader(t, root)

	report, err := l.AutoLoad(context.Background(), []string{"function"})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Loaded) != 1 || report.Loaded[0] != "dbg.function.f" {
		t.Errorf("Loaded = %v, want [dbg.function.f]", report.Loaded)
	}
	if len(sink.reports) != 0 {
		t.Errorf("sink reports = %q, want none", sink.reports)
	}
}

func TestAutoLoadTwiceTearsDownRegistrations(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "unwinder", "a.lua", ext("a")+"runs = (runs or 0) + 1\n")
	writeExt(t, root, "unwinder", "c.lua", ext("c"))

	l, reg, sink := newTestLoader(t, root)
	ctx := context.Background()

	if _, err := l.AutoLoad(ctx, []string{"unwinder"}); err != nil {
		t.Fatal(err)
	}
	report, err := l.AutoLoad(ctx, []string{"unwinder"})
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Reloaded) != 2 || len(report.Loaded) != 0 {
		t.Errorf("second pass Loaded = %v, Reloaded = %v", report.Loaded, report.Reloaded)
	}
	if report.TornDown != 2 {
		t.Errorf("TornDown = %d, want 2", report.TornDown)
	}
	if reg.count("a") != 1 || reg.count("c") != 1 {
		t.Errorf("registry = %v, want a and c once each", reg.names)
	}
	if len(sink.reports) != 0 {
		t.Errorf("sink reports = %q, want none", sink.reports)
	}

	h, ok := l.Handle("dbg.unwinder.a")
	if !ok {
		t.Fatal("handle for a missing")
	}
	if h.Loads() != 2 {
		t.Errorf("Loads() = %d, want 2", h.Loads())
	}
	// Same module object: globals survive the reload.
	if v := h.Lua().GetGlobal("runs"); v.String() != "2" {
		t.Errorf("runs = %v, want 2", v)
	}
	if len(h.Registrations()) != 1 {
		t.Errorf("Registrations() = %v, want 1", h.Registrations())
	}
}

func TestAutoLoadAccumulatePolicy(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "unwinder", "a.lua", ext("a"))

	l, reg, _ := newTestLoader(t, root, WithReloadPolicy(ReloadAccumulate))
	ctx := context.Background()

	if _, err := l.AutoLoad(ctx, []string{"unwinder"}); err != nil {
		t.Fatal(err)
	}
	report, err := l.AutoLoad(ctx, []string{"unwinder"})
	if err != nil {
		t.Fatal(err)
	}

	if reg.count("a") != 2 {
		t.Errorf("registry = %v, want a twice", reg.names)
	}
	if report.Carried != 1 || report.TornDown != 0 {
		t.Errorf("Carried = %d, TornDown = %d, want 1 and 0", report.Carried, report.TornDown)
	}
}

func TestFailedReloadKeepsHandle(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "command", "x.lua", ext("x"))

	l, _, sink := newTestLoader(t, root)
	ctx := context.Background()

	if _, err := l.AutoLoad(ctx, []string{"command"}); err != nil {
		t.Fatal(err)
	}
	writeExt(t, root, "command", "x.lua", `error("regressed")`)
	report, err := l.AutoLoad(ctx, []string{"command"})
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Failed) != 1 || len(sink.reports) != 1 {
		t.Fatalf("Failed = %v, reports = %q", report.Failed, sink.reports)
	}
	h, ok := l.Handle("dbg.command.x")
	if !ok {
		t.Fatal("handle dropped after failed reload")
	}
	if h.State() != StateFailed || h.Err() == nil {
		t.Errorf("State() = %v, Err() = %v, want failed with error", h.State(), h.Err())
	}
}

func TestFailedImportUndoesPartialRegistrations(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "unwinder", "half.lua", ext("half")+`error("after registering")`+"\n")

	l, reg, _ := newTestLoader(t, root)
	if _, err := l.AutoLoad(context.Background(), []string{"unwinder"}); err != nil {
		t.Fatal(err)
	}
	if reg.count("half") != 0 {
		t.Errorf("registry = %v, want partial registration removed", reg.names)
	}
}

// orderedFS serves files from memory in a fixed listing order.
type orderedFS struct {
	dirs  map[string][]string
	files map[string]string
}

func (f *orderedFS) IsDir(path string) bool {
	_, ok := f.dirs[path]
	return ok
}

func (f *orderedFS) ReadDir(path string) ([]string, error) {
	names, ok := f.dirs[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return names, nil
}

func (f *orderedFS) ReadFile(path string) ([]byte, error) {
	src, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(src), nil
}

func TestAutoLoadFollowsListingOrder(t *testing.T) {
	root := "/ext"
	dir := filepath.Join(root, "printer")
	fs := &orderedFS{
		dirs: map[string][]string{dir: {"z.lua", "a.lua", "m.lua"}},
		files: map[string]string{
			filepath.Join(dir, "z.lua"): ext("z"),
			filepath.Join(dir, "a.lua"): ext("a"),
			filepath.Join(dir, "m.lua"): ext("m"),
		},
	}

	l, reg, _ := newTestLoader(t, root, WithFileSystem(fs))
	if _, err := l.AutoLoad(context.Background(), []string{"printer"}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(reg.names, ","); got != "z,a,m" {
		t.Errorf("registration order = %s, want z,a,m", got)
	}
}

func TestAutoLoadReadFailureIsReported(t *testing.T) {
	root := "/ext"
	dir := filepath.Join(root, "command")
	fs := &orderedFS{
		dirs:  map[string][]string{dir: {"gone.lua", "ok.lua"}},
		files: map[string]string{filepath.Join(dir, "ok.lua"): ext("ok")},
	}

	l, reg, sink := newTestLoader(t, root, WithFileSystem(fs))
	report, err := l.AutoLoad(context.Background(), []string{"command"})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failed) != 1 || !errors.Is(report.Failed[0], os.ErrNotExist) {
		t.Errorf("Failed = %v, want one not-exist fault", report.Failed)
	}
	if len(sink.reports) != 1 || reg.count("ok") != 1 {
		t.Errorf("reports = %q, registry = %v", sink.reports, reg.names)
	}
}

func TestAutoLoadCancelled(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "function", "f.lua", ext("f"))

	l, reg, _ := newTestLoader(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.AutoLoad(ctx, []string{"function"}); !errors.Is(err, context.Canceled) {
		t.Errorf("AutoLoad() error = %v, want context.Canceled", err)
	}
	if len(reg.names) != 0 {
		t.Errorf("registry = %v, want nothing loaded", reg.names)
	}
}

func TestSetExtensionDirectory(t *testing.T) {
	oldRoot := t.TempDir()
	newRoot := t.TempDir()
	writeExt(t, oldRoot, "function", "f.lua", ext("f")+"dbg_mod = dbg\n")
	writeExt(t, newRoot, "function", "f.lua", ext("f2"))
	writeExt(t, newRoot, "function", "g.lua", ext("g"))

	l, reg, _ := newTestLoader(t, oldRoot, WithSearchPath("/usr/share/dbg"))
	ctx := context.Background()

	if _, err := l.AutoLoad(ctx, []string{"function"}); err != nil {
		t.Fatal(err)
	}
	h, _ := l.Handle("dbg.function.f")

	report, err := l.SetExtensionDirectory(ctx, newRoot)
	if err != nil {
		t.Fatalf("SetExtensionDirectory() error = %v", err)
	}

	if l.ExtensionDir() != newRoot {
		t.Errorf("ExtensionDir() = %s, want %s", l.ExtensionDir(), newRoot)
	}
	dirs := l.SearchPath().Dirs()
	if len(dirs) != 2 || dirs[0] != newRoot || dirs[1] != "/usr/share/dbg" {
		t.Errorf("search path = %v, want [%s /usr/share/dbg]", dirs, newRoot)
	}

	// The module table f captured before the move sees the new directory.
	if err := h.Lua().DoString(`seen_dir = dbg_mod.extension_dir`); err != nil {
		t.Fatal(err)
	}
	if v := h.Lua().GetGlobal("seen_dir"); v.String() != newRoot {
		t.Errorf("extension_dir = %v, want %s", v, newRoot)
	}

	if len(report.Reloaded) != 1 || len(report.Loaded) != 1 {
		t.Errorf("Loaded = %v, Reloaded = %v", report.Loaded, report.Reloaded)
	}
	if reg.count("f") != 0 || reg.count("f2") != 1 || reg.count("g") != 1 {
		t.Errorf("registry = %v, want f2 and g", reg.names)
	}
}

func TestSetExtensionDirectoryOldRootAlreadyRemoved(t *testing.T) {
	oldRoot := t.TempDir()
	newRoot := t.TempDir()

	l, _, _ := newTestLoader(t, oldRoot)
	l.SearchPath().Remove(oldRoot)

	if _, err := l.SetExtensionDirectory(context.Background(), newRoot); err != nil {
		t.Fatalf("SetExtensionDirectory() error = %v", err)
	}
	if dirs := l.SearchPath().Dirs(); len(dirs) != 1 || dirs[0] != newRoot {
		t.Errorf("search path = %v, want [%s]", dirs, newRoot)
	}
}

func TestRequireFromExtensionRoot(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "lib", "regs.lua", `return { name = "shared" }`)
	writeExt(t, root, "unwinder", "u.lua", `local dbg = require("dbg")
dbg.register(require("lib.regs").name)
`)

	l, reg, sink := newTestLoader(t, root)
	if _, err := l.AutoLoad(context.Background(), []string{"unwinder"}); err != nil {
		t.Fatal(err)
	}
	if reg.count("shared") != 1 {
		t.Errorf("registry = %v, reports = %q", reg.names, sink.reports)
	}
}

func TestUnloadAndClose(t *testing.T) {
	root := t.TempDir()
	writeExt(t, root, "command", "a.lua", ext("a"))
	writeExt(t, root, "command", "b.lua", ext("b"))

	l, reg, _ := newTestLoader(t, root)
	ctx := context.Background()
	if _, err := l.AutoLoad(ctx, []string{"command"}); err != nil {
		t.Fatal(err)
	}

	if err := l.Unload("dbg.command.a"); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if reg.count("a") != 0 {
		t.Errorf("registry = %v, want a removed", reg.names)
	}
	if err := l.Unload("dbg.command.a"); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("second Unload() = %v, want ErrUnknownIdentity", err)
	}

	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if len(reg.names) != 0 {
		t.Errorf("registry = %v after Close, want empty", reg.names)
	}
	if _, err := l.AutoLoad(ctx, []string{"command"}); !errors.Is(err, ErrLoaderClosed) {
		t.Errorf("AutoLoad() after Close = %v, want ErrLoaderClosed", err)
	}
}

func TestParseReloadPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ReloadPolicy
		wantErr bool
	}{
		{"", ReloadTeardown, false},
		{"teardown", ReloadTeardown, false},
		{"accumulate", ReloadAccumulate, false},
		{"merge", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseReloadPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseReloadPolicy(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseReloadPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSearchPath(t *testing.T) {
	p := NewSearchPath("/a", "/b")
	p.Prepend("/c")
	if !p.Remove("/a") {
		t.Error("Remove(/a) = false")
	}
	if p.Remove("/a") {
		t.Error("second Remove(/a) = true")
	}
	got := strings.Join(p.Dirs(), ":")
	if got != "/c:/b" {
		t.Errorf("Dirs() = %s, want /c:/b", got)
	}
	if !p.Contains("/b") || p.Contains("/a") {
		t.Error("Contains() mismatch")
	}
}
