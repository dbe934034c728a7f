package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testDebounce = 30 * time.Millisecond

func newStarted(t *testing.T, root string, packages ...string) *Watcher {
	t.Helper()
	w, err := New(root, packages, WithDebounce(testDebounce))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return w
}

func write(t *testing.T, path, src string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

// waitFor reads requests until one mentions path.
func waitFor(t *testing.T, w *Watcher, path string) Request {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case req, ok := <-w.Requests():
			if !ok {
				t.Fatal("request channel closed")
			}
			for _, p := range req.Paths {
				if p == path {
					return req
				}
			}
		case <-deadline:
			t.Fatalf("no reload request for %s", path)
		}
	}
}

func TestWatcherRequestsReloadOnWrite(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "unwinder")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	w := newStarted(t, root, "unwinder")

	file := filepath.Join(pkg, "tramp.lua")
	write(t, file, "-- v1")
	write(t, file, "-- v2")
	write(t, filepath.Join(pkg, "notes.txt"), "ignored")

	req := waitFor(t, w, file)
	for _, p := range req.Paths {
		if filepath.Ext(p) != ".lua" {
			t.Errorf("request includes %s", p)
		}
	}
	if req.At.IsZero() {
		t.Error("request has no timestamp")
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "command")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	w := newStarted(t, root, "command")

	a := filepath.Join(pkg, "a.lua")
	b := filepath.Join(pkg, "b.lua")
	write(t, a, "")
	write(t, b, "")

	req := waitFor(t, w, a)
	found := false
	for _, p := range req.Paths {
		found = found || p == b
	}
	if !found {
		// b may have landed after the quiet period elapsed.
		waitFor(t, w, b)
	}
}

func TestWatcherPicksUpNewPackageDir(t *testing.T) {
	root := t.TempDir()
	w := newStarted(t, root, "printer")

	pkg := filepath.Join(root, "printer")
	if err := os.Mkdir(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w, pkg)

	file := filepath.Join(pkg, "pair.lua")
	write(t, file, "")
	waitFor(t, w, file)

	watched := false
	for _, p := range w.WatchedPaths() {
		watched = watched || p == pkg
	}
	if !watched {
		t.Errorf("WatchedPaths() = %v, want %s included", w.WatchedPaths(), pkg)
	}
}

func TestWatcherLifecycle(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if w.Root() != root {
		t.Errorf("Root() = %s, want %s", w.Root(), root)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start() = %v, want ErrStarted", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, ok := <-w.Requests(); ok {
		t.Error("request channel still open after Close")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close = %v, want ErrClosed", err)
	}
}

func TestWatcherMissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Start(); err == nil {
		t.Error("Start() on a missing root succeeded")
	}
}
