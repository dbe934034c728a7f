package api

import (
	"fmt"
	"io"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/framehook/internal/command"
	"github.com/dshills/framehook/internal/extension"
	"github.com/dshills/framehook/internal/param"
	"github.com/dshills/framehook/internal/printer"
	"github.com/dshills/framehook/internal/progspace"
	"github.com/dshills/framehook/internal/unwind"
)

// ModuleName is the name extensions require.
const ModuleName = "dbg"

// Host is the debugger state the dbg module reaches into.
type Host interface {
	GlobalUnwinders() *unwind.List
	ProgramSpaces() *progspace.Set
	Parameters() param.Backend
	Commands() *command.Registry
	Printers() *printer.Chain
	Stdout() io.Writer
	Stderr() io.Writer
}

// Module installs part of the dbg table.
type Module interface {
	// Name returns the module name.
	Name() string

	// Install adds the module's functions to mod for the extension h.
	Install(L *lua.LState, mod *lua.LTable, h *extension.Handle)
}

// Registry assembles the dbg module from its parts.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
	names   map[string]bool
}

// NewRegistry creates a registry holding the built-in modules bound to host.
func NewRegistry(host Host) *Registry {
	r := &Registry{names: make(map[string]bool)}
	for _, m := range []Module{
		&OutputModule{host: host},
		&UnwinderModule{host: host},
		&ParameterModule{params: host.Parameters()},
		&CommandModule{commands: host.Commands()},
		&PrinterModule{printers: host.Printers()},
		&ProgspaceModule{spaces: host.ProgramSpaces()},
	} {
		_ = r.Register(m)
	}
	return r
}

// Register adds a module. Names must be unique.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names[m.Name()] {
		return fmt.Errorf("module %q already registered", m.Name())
	}
	r.names[m.Name()] = true
	r.modules = append(r.modules, m)
	return nil
}

// Names returns the module names in install order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.modules))
	for i, m := range r.modules {
		out[i] = m.Name()
	}
	return out
}

// Loader returns the extension.ModuleFunc that builds the dbg table for a
// handle.
func (r *Registry) Loader() extension.ModuleFunc {
	return func(h *extension.Handle) lua.LGFunction {
		return func(L *lua.LState) int {
			mod := L.NewTable()

			r.mu.RLock()
			modules := append([]Module(nil), r.modules...)
			r.mu.RUnlock()

			for _, m := range modules {
				m.Install(L, mod, h)
			}
			L.Push(mod)
			return 1
		}
	}
}

// raise turns a Go error into a Lua error.
func raise(L *lua.LState, err error) int {
	L.RaiseError("%s", err.Error())
	return 0
}
