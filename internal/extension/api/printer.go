package api

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/framehook/internal/extension"
	extlua "github.com/dshills/framehook/internal/extension/lua"
	"github.com/dshills/framehook/internal/printer"
)

// PrinterModule lets extensions add pretty-printers.
type PrinterModule struct {
	printers *printer.Chain
}

// Name returns the module name.
func (m *PrinterModule) Name() string { return "printer" }

// Install adds dbg.register_printer.
func (m *PrinterModule) Install(L *lua.LState, mod *lua.LTable, h *extension.Handle) {
	L.SetField(mod, "register_printer", L.NewFunction(func(L *lua.LState) int {
		return m.register(L, h)
	}))
}

// register implements dbg.register_printer(name, pattern, fn [, replace]).
// fn is called as fn(type_name, data) and returns the text, or nil to
// fall back to the default rendering.
func (m *PrinterModule) register(L *lua.LState, h *extension.Handle) int {
	name := L.CheckString(1)
	pattern := L.CheckString(2)
	fn := L.CheckFunction(3)
	replace := L.OptBool(4, false)

	state := h.Lua()
	p, err := printer.New(name, pattern, func(v printer.Value) (string, error) {
		var out string
		err := state.Do(func(L *lua.LState) error {
			results, err := extlua.Call(L, fn, lua.LString(v.Type), extlua.ToLuaValue(L, v.Data))
			if err != nil {
				return err
			}
			if len(results) == 0 || results[0] == lua.LNil {
				out = fmt.Sprintf("%v", v.Data)
				return nil
			}
			out = L.ToStringMeta(results[0]).String()
			return nil
		})
		return out, err
	})
	if err != nil {
		return raise(L, err)
	}
	p.Owner = h.Identity()

	if err := m.printers.Register(p, replace); err != nil {
		return raise(L, err)
	}
	h.Track("printer", name, func() { m.printers.Remove(p) })
	return 0
}
