package lua

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps a sandboxed gopher-lua state.
type State struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool

	sandbox *Sandbox
}

// StateOption configures a State.
type StateOption func(*stateConfig)

type stateConfig struct {
	searchPath func() []string
	preload    map[string]lua.LGFunction
	output     io.Writer
	callDepth  int
}

// WithSearchPath sets the function consulted by require for file modules.
func WithSearchPath(fn func() []string) StateOption {
	return func(c *stateConfig) {
		c.searchPath = fn
	}
}

// WithPreload makes a Go-backed module available to require.
func WithPreload(name string, loader lua.LGFunction) StateOption {
	return func(c *stateConfig) {
		c.preload[name] = loader
	}
}

// WithOutput redirects print.
func WithOutput(w io.Writer) StateOption {
	return func(c *stateConfig) {
		c.output = w
	}
}

// WithCallStackSize sets the Lua call stack depth.
func WithCallStackSize(n int) StateOption {
	return func(c *stateConfig) {
		c.callDepth = n
	}
}

// NewState creates a sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	cfg := &stateConfig{
		preload:   make(map[string]lua.LGFunction),
		output:    os.Stdout,
		callDepth: lua.CallStackSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: cfg.callDepth,
	})
	openSafeLibraries(L)

	for name, loader := range cfg.preload {
		L.PreloadModule(name, loader)
	}

	s := &State{L: L}
	s.sandbox = newSandbox(L, cfg.searchPath, cfg.output)
	s.sandbox.install()
	return s
}

func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.DoSource(src, path)
}

// DoString executes a Lua string.
func (s *State) DoString(code string) error {
	return s.DoSource([]byte(code), "<string>")
}

// DoSource compiles src under chunkname and runs its top level.
func (s *State) DoSource(src []byte, chunkname string) error {
	return s.Do(func(L *lua.LState) error {
		fn, err := L.Load(bytes.NewReader(src), chunkname)
		if err != nil {
			return err
		}
		L.Push(fn)
		return L.PCall(0, lua.MultRet, nil)
	})
}

// Do runs fn with exclusive access to the LState. Panics raised inside fn
// are returned as errors and the stack is reset when fn returns.
func (s *State) Do(fn func(L *lua.LState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	top := s.L.GetTop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		s.L.SetTop(top)
	}()
	return fn(s.L)
}

// Call calls fn with args and returns its results.
// Returns an empty slice (not nil) if the function returns no values.
func (s *State) Call(fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.Do(func(L *lua.LState) error {
		var err error
		results, err = call(L, fn, args...)
		return err
	})
	return results, err
}

// call is Call for code that already holds the state.
func call(L *lua.LState, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	top := L.GetTop()

	L.Push(fn)
	for _, arg := range args {
		L.Push(arg)
	}
	if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, err
	}

	n := L.GetTop() - top
	results := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = L.Get(top + i + 1)
	}
	L.Pop(n)
	return results, nil
}

// SetModuleField sets key on an already loaded module table. It reports
// false when the module has not been required yet.
func (s *State) SetModuleField(module, key string, value lua.LValue) bool {
	set := false
	_ = s.Do(func(L *lua.LState) error {
		if t, ok := s.sandbox.loaded(module); ok {
			L.SetField(t, key, value)
			set = true
		}
		return nil
	})
	return set
}

// Unload drops module from package.loaded so the next require runs its
// loader again.
func (s *State) Unload(module string) {
	_ = s.Do(func(L *lua.LState) error {
		s.sandbox.unload(module)
		return nil
	})
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	v := lua.LValue(lua.LNil)
	_ = s.Do(func(L *lua.LState) error {
		v = L.GetGlobal(name)
		return nil
	})
	return v
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	_ = s.Do(func(L *lua.LState) error {
		L.SetGlobal(name, value)
		return nil
	})
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Later calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
