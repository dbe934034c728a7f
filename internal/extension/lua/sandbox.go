package lua

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Functions removed from the base library. They read or compile code from
// outside the require path.
var removedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"module",
}

// Sandbox restricts what extension code can reach.
type Sandbox struct {
	L          *lua.LState
	searchPath func() []string
	output     io.Writer
	original   lua.LValue
}

func newSandbox(L *lua.LState, searchPath func() []string, output io.Writer) *Sandbox {
	return &Sandbox{L: L, searchPath: searchPath, output: output}
}

func (s *Sandbox) install() {
	for _, name := range removedGlobals {
		s.L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	s.original = s.L.GetGlobal("require")
	s.L.SetGlobal("require", s.L.NewFunction(s.require))
	s.L.SetGlobal("print", s.L.NewFunction(s.print))
}

func (s *Sandbox) packageTable(field string) (*lua.LTable, bool) {
	pkg, ok := s.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return nil, false
	}
	t, ok := s.L.GetField(pkg, field).(*lua.LTable)
	return t, ok
}

func (s *Sandbox) loaded(module string) (*lua.LTable, bool) {
	loaded, ok := s.packageTable("loaded")
	if !ok {
		return nil, false
	}
	t, ok := loaded.RawGetString(module).(*lua.LTable)
	return t, ok
}

func (s *Sandbox) unload(module string) {
	if loaded, ok := s.packageTable("loaded"); ok {
		loaded.RawSetString(module, lua.LNil)
	}
}

func (s *Sandbox) preloaded(module string) bool {
	preload, ok := s.packageTable("preload")
	return ok && preload.RawGetString(module) != lua.LNil
}

// require serves loaded, preloaded and search-path modules only.
func (s *Sandbox) require(L *lua.LState) int {
	name := L.CheckString(1)

	loaded, ok := s.packageTable("loaded")
	if !ok {
		L.RaiseError("package.loaded is missing")
		return 0
	}
	if v := loaded.RawGetString(name); v != lua.LNil {
		L.Push(v)
		return 1
	}

	if s.preloaded(name) {
		L.Push(s.original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}

	path, err := s.find(name)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	fn, err := L.LoadFile(path)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(fn)
	L.Push(lua.LString(name))
	L.Call(1, 1)

	ret := L.Get(-1)
	L.Pop(1)
	if ret == lua.LNil {
		ret = lua.LTrue
	}
	loaded.RawSetString(name, ret)
	L.Push(ret)
	return 1
}

// find maps a dotted module name to the first matching file on the search
// path.
func (s *Sandbox) find(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}
	if s.searchPath == nil {
		return "", fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}

	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + ".lua"
	var tried []string
	for _, dir := range s.searchPath() {
		candidate := filepath.Join(dir, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		tried = append(tried, candidate)
	}
	return "", fmt.Errorf("%w: %q (tried %s)", ErrModuleNotFound, name, strings.Join(tried, ", "))
}

func (s *Sandbox) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	fmt.Fprintln(s.output, strings.Join(parts, "\t"))
	return 0
}
