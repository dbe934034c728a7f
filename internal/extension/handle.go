package extension

import (
	"sync"
	"time"

	"github.com/google/uuid"

	extlua "github.com/dshills/framehook/internal/extension/lua"
)

// Registration is one side effect an extension's top level made on a
// registry.
type Registration struct {
	Kind       string
	Name       string
	Generation uuid.UUID

	undo func()
}

// Handle is the loaded form of one extension identity.
type Handle struct {
	mu sync.RWMutex

	identity string
	pkg      string
	path     string
	loader   *Loader

	lua *extlua.State

	state      State
	err        error
	generation uuid.UUID
	loads      int
	loadedAt   time.Time

	registrations []Registration
}

// Identity returns the module identity, dbg.<package>.<stem>.
func (h *Handle) Identity() string { return h.identity }

// Package returns the package the extension was found in.
func (h *Handle) Package() string { return h.pkg }

// Path returns the file the extension was last loaded from.
func (h *Handle) Path() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path
}

// Lua returns the extension's Lua state.
func (h *Handle) Lua() *extlua.State { return h.lua }

// ExtensionDir returns the loader's current extension root.
func (h *Handle) ExtensionDir() string {
	if h.loader == nil {
		return ""
	}
	return h.loader.ExtensionDir()
}

// State returns the lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Err returns the error from the last execution, if any.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Generation identifies the current execution of the top level.
func (h *Handle) Generation() uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.generation
}

// Loads returns how many times the top level has run.
func (h *Handle) Loads() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loads
}

// LoadedAt returns when the top level last finished.
func (h *Handle) LoadedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loadedAt
}

// Track records a registration made by the extension. undo removes it again
// and runs at most once, on teardown.
func (h *Handle) Track(kind, name string, undo func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registrations = append(h.registrations, Registration{
		Kind:       kind,
		Name:       name,
		Generation: h.generation,
		undo:       undo,
	})
}

// Registrations returns the live registrations in the order they were made.
func (h *Handle) Registrations() []Registration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Registration(nil), h.registrations...)
}

// teardown undoes every registration, newest first, and returns how many
// there were.
func (h *Handle) teardown() int {
	h.mu.Lock()
	regs := h.registrations
	h.registrations = nil
	h.mu.Unlock()

	for i := len(regs) - 1; i >= 0; i-- {
		if regs[i].undo != nil {
			regs[i].undo()
		}
	}
	return len(regs)
}

func (h *Handle) begin(path string) uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
	h.generation = uuid.New()
	return h.generation
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loads++
	h.err = err
	h.loadedAt = time.Now()
	if err != nil {
		h.state = StateFailed
	} else {
		h.state = StateLoaded
	}
}

func (h *Handle) close() int {
	n := h.teardown()
	_ = h.lua.Close()
	h.mu.Lock()
	h.state = StateClosed
	h.mu.Unlock()
	return n
}
