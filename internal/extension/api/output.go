package api

import (
	"io"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/framehook/internal/extension"
)

// OutputModule provides dbg.write, dbg.write_error and the identity fields.
type OutputModule struct {
	host Host
}

// Name returns the module name.
func (m *OutputModule) Name() string { return "output" }

// Install adds the output functions.
func (m *OutputModule) Install(L *lua.LState, mod *lua.LTable, h *extension.Handle) {
	L.SetField(mod, "extension_dir", lua.LString(h.ExtensionDir()))
	L.SetField(mod, "identity", lua.LString(h.Identity()))
	L.SetField(mod, "write", L.NewFunction(writer(m.host.Stdout())))
	L.SetField(mod, "write_error", L.NewFunction(writer(m.host.Stderr())))
}

func writer(w io.Writer) lua.LGFunction {
	return func(L *lua.LState) int {
		for i := 1; i <= L.GetTop(); i++ {
			if _, err := io.WriteString(w, L.ToStringMeta(L.Get(i)).String()); err != nil {
				return raise(L, err)
			}
		}
		return 0
	}
}
